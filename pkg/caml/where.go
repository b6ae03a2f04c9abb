package caml

// Op is a comparison or logical operator of the query dialect.
type Op string

const (
	Eq          Op = "Eq"
	Neq         Op = "Neq"
	Gt          Op = "Gt"
	Geq         Op = "Geq"
	Lt          Op = "Lt"
	Leq         Op = "Leq"
	IsNull      Op = "IsNull"
	IsNotNull   Op = "IsNotNull"
	BeginsWith  Op = "BeginsWith"
	Contains    Op = "Contains"
	Includes    Op = "Includes"
	NotIncludes Op = "NotIncludes"
	// In matches any of a sequence of values. It is the only operator accepting a sequence.
	In Op = "In"
	// Membership matches user fields against a membership type such as CurrentUserGroups.
	// The leaf's value is the membership type.
	Membership Op = "Membership"

	And Op = "And"
	Or  Op = "Or"
)

var comparisonOps = map[Op]struct{}{
	Eq: {}, Neq: {}, Gt: {}, Geq: {}, Lt: {}, Leq: {},
	IsNull: {}, IsNotNull: {}, BeginsWith: {}, Contains: {},
	Includes: {}, NotIncludes: {}, In: {}, Membership: {},
}

// IsLogical reports whether o combines other clauses.
func (o Op) IsLogical() bool {
	return o == And || o == Or
}

// IsComparison reports whether o compares a field with a value.
func (o Op) IsComparison() bool {
	_, ok := comparisonOps[o]
	return ok
}

// ValueType is the semantic field type of a compared value.
type ValueType string

const (
	Text          ValueType = "Text"
	Note          ValueType = "Note"
	Number        ValueType = "Number"
	Integer       ValueType = "Integer"
	Counter       ValueType = "Counter"
	Currency      ValueType = "Currency"
	Boolean       ValueType = "Boolean"
	DateTime      ValueType = "DateTime"
	Choice        ValueType = "Choice"
	MultiChoice   ValueType = "MultiChoice"
	Lookup        ValueType = "Lookup"
	LookupMulti   ValueType = "LookupMulti"
	User          ValueType = "User"
	UserMulti     ValueType = "UserMulti"
	URL           ValueType = "URL"
	GUID          ValueType = "Guid"
	Calculated    ValueType = "Calculated"
	ContentTypeID ValueType = "ContentTypeId"
	Computed      ValueType = "Computed"
)

func (t ValueType) isLookup() bool {
	return t == Lookup || t == LookupMulti
}

// Value is the compared value of a Leaf: a Scalar or a Values sequence.
type Value interface {
	isValue()
	empty() bool
}

// Scalar is a single literal value.
type Scalar string

// Values is a sequence of literal values, only valid with In.
type Values []string

func (Scalar) isValue() {}
func (Values) isValue() {}

func (s Scalar) empty() bool { return s == "" }
func (v Values) empty() bool { return len(v) == 0 }

// Where is a node of a where clause: a Leaf or a Compound.
type Where interface {
	isWhere()
}

// Leaf compares one column with a value.
type Leaf struct {
	Column string
	Op     Op
	// Value may be nil for operators that take no value such as IsNull.
	Value Value
	Type  ValueType
}

// Compound combines two or more clauses with And or Or, in order.
type Compound struct {
	Op       Op
	Children []Where
}

func (Leaf) isWhere()     {}
func (Compound) isWhere() {}

// AllOf returns a Compound that matches when every child matches.
func AllOf(children ...Where) Compound {
	return Compound{Op: And, Children: children}
}

// AnyOf returns a Compound that matches when any child matches.
func AnyOf(children ...Where) Compound {
	return Compound{Op: Or, Children: children}
}
