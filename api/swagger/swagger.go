package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Cohort Attendance API",
        "description": "QR check-in, attendance and deposit ledger service",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Auth", "description": "Admin authentication"},
        {"name": "Sessions", "description": "Session scheduling and cancellation"},
        {"name": "QRTokens", "description": "Check-in token issuance"},
        {"name": "Attendances", "description": "Check-in, registration and correction"},
        {"name": "Members", "description": "Members and cohort enrollments"},
        {"name": "Deposits", "description": "Deposit ledger"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Auth"],
                "summary": "Admin login",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/sessions": {
            "get": {
                "tags": ["Sessions"],
                "summary": "List upcoming sessions for the active cohort",
                "responses": {"200": {"description": "OK"}}
            },
            "post": {
                "tags": ["Sessions"],
                "summary": "Schedule a session",
                "responses": {"201": {"description": "Created"}}
            }
        },
        "/sessions/{id}": {
            "get": {
                "tags": ["Sessions"],
                "summary": "Get one session",
                "responses": {"200": {"description": "OK"}}
            },
            "put": {
                "tags": ["Sessions"],
                "summary": "Edit a session",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/sessions/{id}/cancel": {
            "post": {
                "tags": ["Sessions"],
                "summary": "Cancel a session",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/sessions/{id}/qr": {
            "post": {
                "tags": ["QRTokens"],
                "summary": "Issue a check-in token",
                "responses": {"201": {"description": "Created"}}
            }
        },
        "/qr-tokens/{id}/renew": {
            "put": {
                "tags": ["QRTokens"],
                "summary": "Expire a token and issue its replacement",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/attendances/check-in": {
            "post": {
                "tags": ["Attendances"],
                "summary": "Check in with a QR code",
                "responses": {"201": {"description": "Created"}}
            }
        },
        "/attendances": {
            "post": {
                "tags": ["Attendances"],
                "summary": "Register an attendance outcome",
                "responses": {"201": {"description": "Created"}}
            }
        },
        "/attendances/{id}": {
            "put": {
                "tags": ["Attendances"],
                "summary": "Correct an attendance record",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/members": {
            "get": {
                "tags": ["Members"],
                "summary": "List members",
                "responses": {"200": {"description": "OK"}}
            },
            "post": {
                "tags": ["Members"],
                "summary": "Register a member",
                "responses": {"201": {"description": "Created"}}
            }
        },
        "/members/{id}/attendances": {
            "get": {
                "tags": ["Attendances"],
                "summary": "List a member's attendance history",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/cohort-members/{id}/deposits": {
            "get": {
                "tags": ["Deposits"],
                "summary": "List a membership's deposit ledger",
                "responses": {"200": {"description": "OK"}}
            }
        }
    },
    "definitions": {
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"}
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
