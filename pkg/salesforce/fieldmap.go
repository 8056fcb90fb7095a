package salesforce

import "strings"

// customFieldSuffix is the Salesforce naming convention for custom fields.
const customFieldSuffix = "__c"

// FieldClass tags a field as standard or custom.
type FieldClass int

const (
	// FieldStandard is a built-in Salesforce field
	FieldStandard FieldClass = iota
	// FieldCustom is an org-defined field (suffix __c)
	FieldCustom
)

// Classify returns the class of an API field name.
func Classify(name string) FieldClass {
	if strings.HasSuffix(name, customFieldSuffix) {
		return FieldCustom
	}
	return FieldStandard
}

// FieldDefinition is one row of the FieldDefinition metadata object.
type FieldDefinition struct {
	QualifiedAPIName string
	Label            string
}

// FieldMap resolves API field names to human-readable labels for one
// object type. It is built once per object from the metadata query and
// the configured standard-field whitelist, then treated as read-only.
type FieldMap struct {
	object string
	fields []string // API names, discovery order
	labels map[string]string
}

// BuildFieldMap keeps whitelisted standard fields and all custom fields
// from the object's field definitions. Discovery order is preserved so
// output columns are stable across runs.
func BuildFieldMap(object string, defs []FieldDefinition, standardFields []string) *FieldMap {
	whitelist := make(map[string]struct{}, len(standardFields))
	for _, f := range standardFields {
		whitelist[f] = struct{}{}
	}

	m := &FieldMap{
		object: object,
		labels: make(map[string]string, len(defs)),
	}

	for _, def := range defs {
		if Classify(def.QualifiedAPIName) == FieldStandard {
			if _, ok := whitelist[def.QualifiedAPIName]; !ok {
				continue
			}
		}
		if _, dup := m.labels[def.QualifiedAPIName]; dup {
			continue
		}
		m.fields = append(m.fields, def.QualifiedAPIName)
		m.labels[def.QualifiedAPIName] = def.Label
	}

	return m
}

// Object returns the object type this map was built for.
func (m *FieldMap) Object() string {
	return m.object
}

// Fields returns the API field names in discovery order.
func (m *FieldMap) Fields() []string {
	return m.fields
}

// Label resolves an API field name to its label. Unmapped names fall
// back to the raw API name verbatim, custom-field suffix included.
func (m *FieldMap) Label(apiName string) string {
	if label, ok := m.labels[apiName]; ok && label != "" {
		return label
	}
	return apiName
}

// Len returns the number of mapped fields.
func (m *FieldMap) Len() int {
	return len(m.fields)
}
