package workflow

import "time"

const (
	userSuffix      = "_user"
	timestampSuffix = "_timestamp"
)

// TimestampLayout is the wire format of audit timestamps. Values are always UTC.
const TimestampLayout = time.RFC3339

// Fields names the stored attributes of one audited step.
type Fields struct {
	Value     string
	User      string
	Timestamp string
}

// FieldsFor maps a step key to its stored field names. This is the only place
// audit field names are built; stored data depends on the exact spelling.
func FieldsFor(key string) Fields {
	return Fields{
		Value:     key,
		User:      key + userSuffix,
		Timestamp: key + timestampSuffix,
	}
}
