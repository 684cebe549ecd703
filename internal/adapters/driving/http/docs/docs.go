// Package docs registers the sercha-rag OpenAPI document with swag.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {
            "name": "Sercha OSS",
            "url": "https://github.com/custodia-labs/sercha-rag/issues"
        },
        "license": {
            "name": "Apache 2.0",
            "url": "http://www.apache.org/licenses/LICENSE-2.0.html"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Health"],
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/http.StatusResponse"}}
                }
            }
        },
        "/ready": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Health"],
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/http.ReadyResponse"}},
                    "503": {"description": "A component is unhealthy", "schema": {"$ref": "#/definitions/http.ReadyResponse"}}
                }
            }
        },
        "/query": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Retrieval"],
                "summary": "Answer a question from the indexed documents",
                "parameters": [
                    {"type": "string", "description": "Question", "name": "q", "in": "query", "required": true},
                    {"type": "string", "description": "Filter by class (e.g. 'Class 8')", "name": "class_name", "in": "query"},
                    {"type": "string", "description": "Filter by subject (e.g. 'Geo')", "name": "subject", "in": "query"},
                    {"type": "string", "description": "Filter by chapter (e.g. 'Chapter 1')", "name": "chapter", "in": "query"},
                    {"type": "integer", "description": "Number of passages", "name": "top_k", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/domain.Answer"}},
                    "400": {"description": "Invalid query", "schema": {"$ref": "#/definitions/http.ErrorResponse"}},
                    "502": {"description": "Provider failure", "schema": {"$ref": "#/definitions/http.ErrorResponse"}}
                }
            }
        },
        "/api/v1/retrieve": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Retrieval"],
                "summary": "Retrieve ranked passages",
                "parameters": [
                    {"description": "Retrieval request", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/domain.RetrievalRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/domain.RetrievalResult"}},
                    "400": {"description": "Invalid request", "schema": {"$ref": "#/definitions/http.ErrorResponse"}},
                    "502": {"description": "Provider failure", "schema": {"$ref": "#/definitions/http.ErrorResponse"}}
                }
            }
        },
        "/api/v1/documents": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Ingestion"],
                "summary": "Ingest one document",
                "parameters": [
                    {"description": "Document", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/domain.Document"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/http.ChunkCountResponse"}},
                    "400": {"description": "Invalid document", "schema": {"$ref": "#/definitions/http.ErrorResponse"}},
                    "503": {"description": "Document locked or provider unavailable", "schema": {"$ref": "#/definitions/http.ErrorResponse"}}
                }
            }
        },
        "/api/v1/ingest": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Ingestion"],
                "summary": "Ingest a folder of tagged PDFs",
                "parameters": [
                    {"description": "Folder", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/http.IngestFolderRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/domain.BatchResult"}},
                    "400": {"description": "Invalid folder path", "schema": {"$ref": "#/definitions/http.ErrorResponse"}}
                }
            }
        },
        "/api/v1/documents/{id}/chunks/count": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Ingestion"],
                "summary": "Count stored chunks of a document",
                "parameters": [
                    {"type": "string", "description": "Document ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/http.ChunkCountResponse"}}
                }
            }
        },
        "/api/v1/stats": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Ingestion"],
                "summary": "Describe the vector index",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/domain.IndexStats"}}
                }
            }
        }
    },
    "definitions": {
        "domain.Answer": {
            "type": "object",
            "properties": {
                "query": {"type": "string"},
                "response": {"type": "string"},
                "metadata": {"type": "array", "items": {"type": "object", "additionalProperties": {"type": "string"}}}
            }
        },
        "domain.RetrievalRequest": {
            "type": "object",
            "properties": {
                "query": {"type": "string", "example": "What is photosynthesis?"},
                "filters": {"type": "object", "additionalProperties": {"type": "string"}},
                "top_k": {"type": "integer", "example": 5}
            }
        },
        "domain.Passage": {
            "type": "object",
            "properties": {
                "chunk_id": {"type": "string"},
                "document_id": {"type": "string"},
                "text": {"type": "string"},
                "tags": {"type": "object", "additionalProperties": {"type": "string"}},
                "score": {"type": "number"}
            }
        },
        "domain.RetrievalResult": {
            "type": "object",
            "properties": {
                "query": {"type": "string"},
                "passages": {"type": "array", "items": {"$ref": "#/definitions/domain.Passage"}},
                "took": {"type": "integer", "example": 1500000}
            }
        },
        "domain.Document": {
            "type": "object",
            "properties": {
                "document_id": {"type": "string", "example": "class8_science_c1.pdf"},
                "text": {"type": "string"},
                "tags": {"type": "object", "additionalProperties": {"type": "string"}}
            }
        },
        "domain.IngestResult": {
            "type": "object",
            "properties": {
                "document_id": {"type": "string"},
                "chunks": {"type": "integer"},
                "error": {"type": "string"}
            }
        },
        "domain.BatchResult": {
            "type": "object",
            "properties": {
                "results": {"type": "array", "items": {"$ref": "#/definitions/domain.IngestResult"}},
                "succeeded": {"type": "integer"},
                "failed": {"type": "integer"},
                "skipped": {"type": "array", "items": {"type": "string"}}
            }
        },
        "domain.IndexStats": {
            "type": "object",
            "properties": {
                "collection": {"type": "string"},
                "chunks": {"type": "integer"},
                "dimensions": {"type": "integer"},
                "model": {"type": "string"}
            }
        },
        "http.ChunkCountResponse": {
            "type": "object",
            "properties": {
                "document_id": {"type": "string"},
                "chunks": {"type": "integer"}
            }
        },
        "http.IngestFolderRequest": {
            "type": "object",
            "properties": {
                "folder_path": {"type": "string", "example": "./data"}
            }
        },
        "http.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string", "example": "invalid request body"}
            }
        },
        "http.StatusResponse": {
            "type": "object",
            "properties": {
                "status": {"type": "string", "example": "ok"}
            }
        },
        "http.ReadyResponse": {
            "type": "object",
            "properties": {
                "status": {"type": "string", "example": "ready"},
                "components": {"type": "object", "additionalProperties": {"type": "string"}},
                "index_backend": {"type": "string", "example": "sqlite"},
                "lock_backend": {"type": "string", "example": "none"},
                "can_retrieve": {"type": "boolean"},
                "can_answer": {"type": "boolean"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8000",
	BasePath:         "/",
	Schemes:          []string{"http", "https"},
	Title:            "Sercha RAG API",
	Description:      "Filtered semantic retrieval over tagged documents, with optional grounded answers.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
