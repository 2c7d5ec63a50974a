package results

// SPARQL 1.1 Query Results JSON Format
// https://www.w3.org/TR/sparql11-results-json/

// Term types used in value descriptors.
const (
	TypeURI          = "uri"
	TypeLiteral      = "literal"
	TypeTypedLiteral = "typed-literal"
	TypeBNode        = "bnode"
)

// Value is a single bound value as carried in a value descriptor.
type Value struct {
	Type     string `json:"type"`
	Value    string `json:"value"`
	Datatype string `json:"datatype,omitempty"`
	Lang     string `json:"xml:lang,omitempty"`
}

// IsURI reports whether the value is an IRI rather than a literal or blank node.
func (v Value) IsURI() bool { return v.Type == TypeURI }

// BindingRow maps variable names to their values in one solution. Variables
// left unbound by the query are absent.
type BindingRow map[string]Value

// Get returns the lexical value bound to name and whether it was bound.
func (r BindingRow) Get(name string) (string, bool) {
	v, ok := r[name]
	return v.Value, ok
}

// ResultSet is a parsed SELECT result: the header variables in query order
// and the solution rows in result order. A ResultSet with no rows is a
// successful, empty answer.
type ResultSet struct {
	Vars []string
	Rows []BindingRow
}

// Len returns the number of rows.
func (rs *ResultSet) Len() int { return len(rs.Rows) }

// Empty reports whether the query produced no solutions.
func (rs *ResultSet) Empty() bool { return len(rs.Rows) == 0 }

// HasVar reports whether name is one of the header variables.
func (rs *ResultSet) HasVar(name string) bool {
	for _, v := range rs.Vars {
		if v == name {
			return true
		}
	}
	return false
}

// Column returns the lexical values of one variable across all rows, with
// an empty string for rows where it is unbound.
func (rs *ResultSet) Column(name string) []string {
	out := make([]string, len(rs.Rows))
	for i, row := range rs.Rows {
		out[i], _ = row.Get(name)
	}
	return out
}

// wire types

type document struct {
	Head    *head    `json:"head"`
	Results *payload `json:"results"`
	Boolean *bool    `json:"boolean"`
}

type head struct {
	Vars []string `json:"vars"`
	Link []string `json:"link,omitempty"`
}

type payload struct {
	Bindings []map[string]*Value `json:"bindings"`
}
