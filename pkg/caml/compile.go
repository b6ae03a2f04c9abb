// Package caml compiles query descriptors into the list store's XML query dialect.
package caml

import (
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/openfga/listquery/pkg/storage"
)

// PageCap is the maximum number of rows the store returns for a single query execution.
const PageCap = 5000

// JoinType is the kind of join between a list and a foreign list.
type JoinType string

const (
	LeftJoin  JoinType = "LEFT"
	InnerJoin JoinType = "INNER"
)

// Join binds a lookup column of the queried list to the identity column of a foreign list and
// projects columns of the foreign list into the result.
//
// Projected columns must be of a kind the store can project through a lookup (Calculated,
// Counter, Currency, DateTime, Guid, Integer, Text, ContentTypeId). This is not checked here;
// other kinds are rejected by the store.
type Join struct {
	Type             JoinType `json:"type,omitempty"`
	ForeignList      string   `json:"foreignList"`
	LocalColumn      string   `json:"localColumn"`
	ProjectedColumns []string `json:"projectedColumns,omitempty"`
}

// ProjectedName returns the name under which the projected column is requested and returned.
func (j Join) ProjectedName(column string) string {
	return j.ForeignList + column
}

// Descriptor describes the data wanted from a list.
type Descriptor struct {
	List storage.ListID
	// Columns are the internal names of the requested columns, in order. Duplicates are kept.
	Columns []string
	// RawQuery, when set, is used verbatim instead of the compiled view. It must carry its own
	// projection; Columns still drive how returned items are projected into rows.
	RawQuery string
	Where    Where
	Join     *Join
	// Cursor is the position the first page is requested from.
	Cursor int
}

// Validate checks the descriptor fields that must hold before anything is sent to the store.
func Validate(d Descriptor) error {
	if d.List.IsZero() {
		return storage.DescriptorError("no list identifier")
	}
	if d.List.Title != "" && d.List.GUID != "" {
		return storage.DescriptorError("both list title '%s' and list guid '%s' given", d.List.Title, d.List.GUID)
	}
	if d.List.GUID != "" {
		if _, err := uuid.Parse(d.List.GUID); err != nil {
			return storage.DescriptorError("malformed list guid '%s'", d.List.GUID)
		}
	}
	if len(d.Columns) == 0 && d.RawQuery == "" {
		return storage.DescriptorError("no columns requested for list '%s'", d.List)
	}
	for i, c := range d.Columns {
		if strings.TrimSpace(c) == "" {
			return storage.DescriptorError("empty column name at position %d", i)
		}
	}
	if d.Cursor < 0 {
		return storage.DescriptorError("negative cursor %d", d.Cursor)
	}
	return nil
}

// Compile validates the descriptor and renders the query document sent to the store.
func Compile(d Descriptor) (string, error) {
	if err := Validate(d); err != nil {
		return "", err
	}
	if d.RawQuery != "" {
		return d.RawQuery, nil
	}

	var sb strings.Builder
	sb.WriteString(`<View Scope="RecursiveAll">`)

	open(&sb, "ViewFields")
	for _, c := range d.Columns {
		fieldRef(&sb, c, false)
	}
	closeTag(&sb, "ViewFields")

	if d.Where != nil {
		open(&sb, "Query")
		open(&sb, "Where")
		if err := writeWhere(&sb, d.Where); err != nil {
			return "", err
		}
		closeTag(&sb, "Where")
		closeTag(&sb, "Query")
	}

	if d.Join != nil {
		if err := writeJoin(&sb, *d.Join); err != nil {
			return "", err
		}
	}

	sb.WriteString(`<RowLimit Paged="TRUE">`)
	sb.WriteString(strconv.Itoa(PageCap))
	sb.WriteString("</RowLimit>")

	closeTag(&sb, "View")
	return sb.String(), nil
}

func writeJoin(sb *strings.Builder, j Join) error {
	if j.ForeignList == "" {
		return storage.CompilationError("join has no foreign list")
	}
	if j.LocalColumn == "" {
		return storage.CompilationError("join to '%s' has no local column", j.ForeignList)
	}
	joinType := j.Type
	if joinType == "" {
		joinType = LeftJoin
	}
	if joinType != LeftJoin && joinType != InnerJoin {
		return storage.CompilationError("unknown join type '%s'", j.Type)
	}

	list := escape(j.ForeignList)

	open(sb, "Joins")
	sb.WriteString(`<Join Type="`)
	sb.WriteString(string(joinType))
	sb.WriteString(`" ListAlias="`)
	sb.WriteString(list)
	sb.WriteString(`">`)
	open(sb, string(Eq))
	sb.WriteString(`<FieldRef Name="`)
	sb.WriteString(escape(j.LocalColumn))
	sb.WriteString(`" RefType="Id" />`)
	sb.WriteString(`<FieldRef List="`)
	sb.WriteString(list)
	sb.WriteString(`" Name="ID" />`)
	closeTag(sb, string(Eq))
	closeTag(sb, "Join")
	closeTag(sb, "Joins")

	open(sb, "ProjectedFields")
	for _, c := range j.ProjectedColumns {
		sb.WriteString(`<Field Name="`)
		sb.WriteString(escape(j.ProjectedName(c)))
		sb.WriteString(`" Type="Lookup" List="`)
		sb.WriteString(list)
		sb.WriteString(`" ShowField="`)
		sb.WriteString(escape(c))
		sb.WriteString(`" />`)
	}
	closeTag(sb, "ProjectedFields")
	return nil
}
