package storage

// LogicalType names the backend-independent type of each output column.
// Backends render these into their own DDL dialect. Unknown columns
// (e.g. the optional bank enrichment column) default to "text".
func LogicalType(column string) string {
	switch column {
	case "person_id", "rev":
		return "int"
	case "time_stamp":
		return "time"
	default:
		return "text"
	}
}
