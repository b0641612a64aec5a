package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "SIS Mastery API",
        "description": "Mastery proposals, review decisions, snapshot runs, assessment labels and exports",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http",
        "https"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "security": [{"BearerAuth": []}],
    "tags": [
        {"name": "Mastery", "description": "Proposal drafting, submission and review"},
        {"name": "SnapshotRuns", "description": "Point-in-time snapshot runs and PDF reports"},
        {"name": "AssessmentLabels", "description": "Assessment label sets and labels"},
        {"name": "Exports", "description": "CSV exports"}
    ],
    "paths": {
        "/mastery/proposals": {
            "get": {
                "tags": ["Mastery"],
                "summary": "List drafts or the review queue",
                "parameters": [
                    {"name": "type", "in": "query", "type": "string", "enum": ["drafts", "review"]},
                    {"name": "teacher_id", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ProposalList"}},
                    "400": {"description": "Bad request", "schema": {"$ref": "#/definitions/ErrorBody"}}
                }
            },
            "post": {
                "tags": ["Mastery"],
                "summary": "Create or update the caller's draft",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpsertMasteryDraftRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ProposalEnvelope"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/ErrorBody"}},
                    "409": {"description": "Proposal already submitted", "schema": {"$ref": "#/definitions/ErrorBody"}}
                }
            }
        },
        "/mastery/proposals/{id}": {
            "get": {
                "tags": ["Mastery"],
                "summary": "Get a proposal",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ProposalEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ErrorBody"}}
                }
            }
        },
        "/mastery/proposals/{id}/evidence": {
            "get": {
                "tags": ["Mastery"],
                "summary": "List a proposal's evidence links",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/mastery/proposals/{id}/submit": {
            "post": {
                "tags": ["Mastery"],
                "summary": "Submit a draft for review",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ProposalEnvelope"}},
                    "403": {"description": "Not the author", "schema": {"$ref": "#/definitions/ErrorBody"}},
                    "409": {"description": "Not a draft", "schema": {"$ref": "#/definitions/ErrorBody"}}
                }
            }
        },
        "/mastery/proposals/{id}/review": {
            "post": {
                "tags": ["Mastery"],
                "summary": "Approve, request changes on, or override a proposal",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ReviewMasteryRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ProposalEnvelope"}},
                    "400": {"description": "Invalid action or override fields", "schema": {"$ref": "#/definitions/ErrorBody"}},
                    "409": {"description": "Proposal not awaiting review", "schema": {"$ref": "#/definitions/ErrorBody"}}
                }
            }
        },
        "/mastery/snapshots/current": {
            "get": {
                "tags": ["Mastery"],
                "summary": "Current approved mastery of a learner",
                "parameters": [{"name": "learner_id", "in": "query", "type": "string"}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/mastery/models": {
            "get": {
                "tags": ["Mastery"],
                "summary": "List mastery models",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/mastery/models/{id}/levels": {
            "get": {
                "tags": ["Mastery"],
                "summary": "List the levels of a mastery model",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/mastery/snapshot-runs": {
            "get": {
                "tags": ["SnapshotRuns"],
                "summary": "List snapshot runs",
                "parameters": [
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "limit", "in": "query", "type": "integer"},
                    {"name": "offset", "in": "query", "type": "integer"}
                ],
                "responses": {"200": {"description": "OK"}}
            },
            "post": {
                "tags": ["SnapshotRuns"],
                "summary": "Queue a snapshot run",
                "parameters": [
                    {"name": "payload", "in": "body", "schema": {"$ref": "#/definitions/CreateSnapshotRunRequest"}}
                ],
                "responses": {"202": {"description": "Accepted"}}
            }
        },
        "/mastery/snapshot-runs/{id}": {
            "get": {
                "tags": ["SnapshotRuns"],
                "summary": "Get a snapshot run with its snapshots",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK"},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ErrorBody"}}
                }
            }
        },
        "/mastery/snapshot-runs/{id}/report": {
            "get": {
                "tags": ["SnapshotRuns"],
                "summary": "Signed download link for a run report",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ReportLink"}},
                    "409": {"description": "Report not ready", "schema": {"$ref": "#/definitions/ErrorBody"}}
                }
            }
        },
        "/exports/{token}": {
            "get": {
                "tags": ["SnapshotRuns"],
                "summary": "Download a report through a signed token",
                "security": [],
                "produces": ["application/pdf"],
                "parameters": [{"name": "token", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "PDF report"},
                    "403": {"description": "Invalid or expired token", "schema": {"$ref": "#/definitions/ErrorBody"}}
                }
            }
        },
        "/assessment-label-sets": {
            "get": {
                "tags": ["AssessmentLabels"],
                "summary": "List label sets",
                "parameters": [{"name": "include_archived", "in": "query", "type": "boolean"}],
                "responses": {"200": {"description": "OK"}}
            },
            "post": {
                "tags": ["AssessmentLabels"],
                "summary": "Create a label set",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AssessmentLabelSetRequest"}}
                ],
                "responses": {"201": {"description": "Created"}}
            }
        },
        "/assessment-label-sets/{id}": {
            "get": {
                "tags": ["AssessmentLabels"],
                "summary": "Get a label set",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}}
            },
            "put": {
                "tags": ["AssessmentLabels"],
                "summary": "Update a label set",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AssessmentLabelSetRequest"}}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/assessment-label-sets/{id}/archive": {
            "post": {
                "tags": ["AssessmentLabels"],
                "summary": "Archive a label set and its labels",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/assessment-label-sets/{id}/labels": {
            "get": {
                "tags": ["AssessmentLabels"],
                "summary": "List the labels of a set",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "include_archived", "in": "query", "type": "boolean"}
                ],
                "responses": {"200": {"description": "OK"}}
            },
            "post": {
                "tags": ["AssessmentLabels"],
                "summary": "Add a label to a set",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AssessmentLabelRequest"}}
                ],
                "responses": {"201": {"description": "Created"}}
            }
        },
        "/assessment-labels/{id}": {
            "put": {
                "tags": ["AssessmentLabels"],
                "summary": "Update a label",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AssessmentLabelRequest"}}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/assessment-labels/{id}/archive": {
            "post": {
                "tags": ["AssessmentLabels"],
                "summary": "Archive a label",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/students/export": {
            "get": {
                "tags": ["Exports"],
                "summary": "Export students as CSV",
                "produces": ["text/csv"],
                "parameters": [
                    {"name": "school_id", "in": "query", "type": "string"},
                    {"name": "grade_level", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "sort_by", "in": "query", "type": "string"},
                    {"name": "sort_order", "in": "query", "type": "string"}
                ],
                "responses": {"200": {"description": "CSV file"}}
            }
        },
        "/admissions/export": {
            "get": {
                "tags": ["Exports"],
                "summary": "Export admissions as CSV",
                "produces": ["text/csv"],
                "parameters": [
                    {"name": "school_id", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string"}
                ],
                "responses": {"200": {"description": "CSV file"}}
            }
        }
    },
    "definitions": {
        "EvidenceInput": {
            "type": "object",
            "required": ["evidence_id", "evidence_type"],
            "properties": {
                "evidence_id": {"type": "string"},
                "evidence_type": {"type": "string"}
            }
        },
        "UpsertMasteryDraftRequest": {
            "type": "object",
            "required": ["learner_id", "competency_id", "mastery_level_id", "rationale_text"],
            "properties": {
                "learner_id": {"type": "string"},
                "competency_id": {"type": "string"},
                "mastery_level_id": {"type": "string"},
                "rationale_text": {"type": "string"},
                "highlight_evidence_ids": {"type": "array", "items": {"type": "string"}},
                "organization_id": {"type": "string"},
                "school_id": {"type": "string"},
                "evidence": {"type": "array", "items": {"$ref": "#/definitions/EvidenceInput"}}
            }
        },
        "ReviewMasteryRequest": {
            "type": "object",
            "required": ["action"],
            "properties": {
                "action": {"type": "string", "enum": ["approve", "request_changes", "override"]},
                "reviewer_notes": {"type": "string"},
                "override_level_id": {"type": "string"},
                "override_justification": {"type": "string"}
            }
        },
        "MasterySnapshot": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "learner_id": {"type": "string"},
                "competency_id": {"type": "string"},
                "teacher_id": {"type": "string"},
                "mastery_level_id": {"type": "string"},
                "status": {"type": "string", "enum": ["draft", "submitted", "changes_requested", "approved"]},
                "rationale_text": {"type": "string"},
                "reviewer_notes": {"type": "string"},
                "confirmed_by": {"type": "string"},
                "snapshot_date": {"type": "string", "format": "date-time"}
            }
        },
        "ProposalEnvelope": {
            "type": "object",
            "properties": {"proposal": {"$ref": "#/definitions/MasterySnapshot"}}
        },
        "ProposalList": {
            "type": "object",
            "properties": {"proposals": {"type": "array", "items": {"$ref": "#/definitions/MasterySnapshot"}}}
        },
        "CreateSnapshotRunRequest": {
            "type": "object",
            "properties": {
                "snapshot_date": {"type": "string", "format": "date-time"},
                "scope_type": {"type": "string", "enum": ["organization", "school", "learner"]},
                "scope_id": {"type": "string"},
                "term": {"type": "string"},
                "school_year": {"type": "string"}
            }
        },
        "ReportLink": {
            "type": "object",
            "properties": {
                "url": {"type": "string"},
                "expires_at": {"type": "string", "format": "date-time"}
            }
        },
        "AssessmentLabelSetRequest": {
            "type": "object",
            "required": ["name"],
            "properties": {
                "name": {"type": "string"},
                "description": {"type": "string"}
            }
        },
        "AssessmentLabelRequest": {
            "type": "object",
            "required": ["label"],
            "properties": {
                "label": {"type": "string"},
                "description": {"type": "string"},
                "display_order": {"type": "integer"}
            }
        },
        "ErrorBody": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "code": {"type": "string"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
