// Package models defines the tracked entities and their stored document form.
package models

// Stored field names. Existing data depends on the exact spelling.
const (
	FieldActivityName = "NombreActividad"
	FieldArea         = "Area"
)

// Activity is a training activity. Its document doubles as the approval step
// record.
type Activity struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Area string `json:"area"`
}

// ToDocument returns the entity attributes as stored fields.
func (a Activity) ToDocument() map[string]any {
	return map[string]any{
		FieldActivityName: a.Name,
		FieldArea:         a.Area,
	}
}

// ActivityFromDocument decodes a stored activity.
func ActivityFromDocument(id string, doc map[string]any) Activity {
	return Activity{
		ID:   id,
		Name: stringField(doc, FieldActivityName),
		Area: stringField(doc, FieldArea),
	}
}

func stringField(doc map[string]any, key string) string {
	s, _ := doc[key].(string)
	return s
}
