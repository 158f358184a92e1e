package schemas

// AuditReportSchema constrains audit report JSON accepted by the CLI and
// the HTTP API. A bare issue array is also accepted by the loaders; this
// schema covers the full report object form.
const AuditReportSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["issues"],
  "properties": {
    "manuscript_id": {"type": "string"},
    "issues": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["description"],
        "properties": {
          "id": {"type": "string"},
          "description": {"type": "string", "minLength": 1},
          "location": {"type": "string"},
          "severity": {"enum": ["LOW", "MEDIUM", "HIGH", "CRITICAL", ""]},
          "suggestion": {"type": "string"}
        }
      }
    }
  }
}`

// ValidateAuditReport checks audit report JSON against AuditReportSchema.
func ValidateAuditReport(jsonContent string) error {
	return ValidateJSONString(AuditReportSchema, jsonContent)
}
