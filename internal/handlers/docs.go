package handlers

import (
	"encoding/json"
	"net/http"
)

func queryParam(name, description string, required bool) map[string]interface{} {
	return map[string]interface{}{
		"name":        name,
		"in":          "query",
		"description": description,
		"required":    required,
		"schema":      map[string]string{"type": "string"},
	}
}

func jsonResponse(description string, schema map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"description": description,
		"content": map[string]interface{}{
			"application/json": map[string]interface{}{"schema": schema},
		},
	}
}

func objectSchema(properties map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{"type": "object", "properties": properties}
}

var (
	errorSchema = objectSchema(map[string]interface{}{
		"error":   map[string]string{"type": "string"},
		"message": map[string]string{"type": "string"},
		"code":    map[string]string{"type": "integer"},
		"missing": map[string]interface{}{"type": "array", "items": map[string]string{"type": "string"}},
	})

	importResultSchema = objectSchema(map[string]interface{}{
		"batch_id":    map[string]string{"type": "string", "format": "uuid"},
		"source":      map[string]string{"type": "string"},
		"records":     map[string]string{"type": "integer"},
		"duration_ns": map[string]string{"type": "integer"},
	})

	ratesSchema = objectSchema(map[string]interface{}{
		"hourly_wage":  map[string]string{"type": "number"},
		"machine_rate": map[string]string{"type": "number"},
		"unit_prices": map[string]interface{}{
			"type":                 "object",
			"additionalProperties": map[string]string{"type": "number"},
		},
		"updated_at": map[string]string{"type": "string", "format": "date-time"},
	})

	unitOutputsSchema = map[string]interface{}{
		"type": "array",
		"items": objectSchema(map[string]interface{}{
			"unit":  map[string]string{"type": "string"},
			"value": map[string]string{"type": "number"},
		}),
	}

	seriesSchema = map[string]interface{}{
		"type": "array",
		"items": objectSchema(map[string]interface{}{
			"label": map[string]string{"type": "string"},
			"value": map[string]string{"type": "number"},
		}),
	}

	siteSchema = objectSchema(map[string]interface{}{
		"key":                   map[string]string{"type": "string"},
		"count":                 map[string]string{"type": "integer"},
		"days":                  map[string]string{"type": "integer"},
		"worker_hours":          map[string]string{"type": "number"},
		"machine_hours":         map[string]string{"type": "number"},
		"outputs":               unitOutputsSchema,
		"output_label":          map[string]string{"type": "string"},
		"productivity":          map[string]interface{}{"type": "number", "nullable": true},
		"productivity_label":    map[string]string{"type": "string"},
		"ky_count":              map[string]string{"type": "integer"},
		"ky_rate":               map[string]string{"type": "number"},
		"incident_minor_count":  map[string]string{"type": "integer"},
		"incident_severe_count": map[string]string{"type": "integer"},
	})

	kpiSchema = objectSchema(map[string]interface{}{
		"count":                    map[string]string{"type": "integer"},
		"worker_hours":             map[string]string{"type": "number"},
		"machine_hours":            map[string]string{"type": "number"},
		"machine_ratio":            map[string]interface{}{"type": "number", "nullable": true},
		"ky_count":                 map[string]string{"type": "integer"},
		"ky_rate":                  map[string]string{"type": "number"},
		"incident_minor_count":     map[string]string{"type": "integer"},
		"incident_severe_count":    map[string]string{"type": "integer"},
		"outputs":                  unitOutputsSchema,
		"single_unit":              map[string]string{"type": "string"},
		"total_output_label":       map[string]string{"type": "string"},
		"productivity":             map[string]interface{}{"type": "number", "nullable": true},
		"productivity_label":       map[string]string{"type": "string"},
		"daily_series":             seriesSchema,
		"sites":                    map[string]interface{}{"type": "array", "items": siteSchema},
		"site_productivity_series": seriesSchema,
		"worker_count":             map[string]string{"type": "integer"},
		"team_count":               map[string]string{"type": "integer"},
		"site_count":               map[string]string{"type": "integer"},
	})

	pnlRowSchema = objectSchema(map[string]interface{}{
		"site_id":       map[string]string{"type": "string"},
		"month":         map[string]string{"type": "string"},
		"worker_hours":  map[string]string{"type": "number"},
		"machine_hours": map[string]string{"type": "number"},
		"revenue":       map[string]string{"type": "number"},
		"labor_cost":    map[string]string{"type": "number"},
		"machine_cost":  map[string]string{"type": "number"},
		"other_cost":    map[string]string{"type": "number"},
		"gross":         map[string]string{"type": "number"},
		"margin_ratio":  map[string]interface{}{"type": "number", "nullable": true},
	})

	fileResponse = map[string]interface{}{
		"description": "File download",
		"content": map[string]interface{}{
			"text/csv": map[string]interface{}{"schema": map[string]string{"type": "string"}},
			"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": map[string]interface{}{
				"schema": map[string]string{"type": "string", "format": "binary"},
			},
		},
	}

	uploadBody = map[string]interface{}{
		"required": true,
		"content": map[string]interface{}{
			"text/csv": map[string]interface{}{"schema": map[string]string{"type": "string"}},
			"multipart/form-data": map[string]interface{}{
				"schema": objectSchema(map[string]interface{}{
					"file": map[string]string{"type": "string", "format": "binary"},
				}),
			},
		},
	}
)

// OpenAPISpec returns the OpenAPI 3.0 specification for the Work Log Platform API
func OpenAPISpec(w http.ResponseWriter, r *http.Request) {
	monthOptional := queryParam("month", "Filter by month (YYYY-MM), all months when empty", false)
	monthRequired := queryParam("month", "Month (YYYY-MM)", true)
	task := queryParam("task", "Filter by task code, all tasks when empty or \"all\"", false)
	source := queryParam("source", "Source name recorded with the batch (default: upload)", false)

	badRequest := jsonResponse("Invalid request", errorSchema)
	schemaMismatch := jsonResponse("Header does not match the work-log schema", errorSchema)

	spec := map[string]interface{}{
		"openapi": "3.0.0",
		"info": map[string]interface{}{
			"title":       "Work Log Platform API",
			"description": "Forestry work-log ingestion, KPI aggregation, site P&L and report exports",
			"version":     "1.0.0",
			"contact": map[string]string{
				"name": "Work Log Platform Team",
			},
		},
		"servers": []map[string]string{
			{"url": "http://localhost:8080", "description": "Local development server"},
		},
		"paths": map[string]interface{}{
			"/api/v1/worklogs/import": map[string]interface{}{
				"post": map[string]interface{}{
					"summary":     "Import a work-log export",
					"description": "Decode a tabular work-log export (raw body or multipart field \"file\") and store its records",
					"parameters":  []map[string]interface{}{source},
					"requestBody": uploadBody,
					"responses": map[string]interface{}{
						"201": jsonResponse("Records stored", importResultSchema),
						"400": badRequest,
						"422": schemaMismatch,
					},
				},
			},
			"/api/v1/worklogs/documents": map[string]interface{}{
				"post": map[string]interface{}{
					"summary":     "Store work-log documents",
					"description": "Store raw documents; they are normalized when reports read them",
					"requestBody": map[string]interface{}{
						"required": true,
						"content": map[string]interface{}{
							"application/json": map[string]interface{}{
								"schema": map[string]interface{}{
									"type":  "array",
									"items": map[string]string{"type": "object"},
								},
							},
						},
					},
					"responses": map[string]interface{}{
						"201": jsonResponse("Documents stored", importResultSchema),
						"400": badRequest,
					},
				},
			},
			"/api/v1/worklogs/export": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Export work logs",
					"description": "Download the merged work logs in the import format",
					"parameters":  []map[string]interface{}{monthOptional},
					"responses": map[string]interface{}{
						"200": fileResponse,
						"400": badRequest,
					},
				},
			},
			"/api/v1/ledger/import": map[string]interface{}{
				"post": map[string]interface{}{
					"summary":     "Import a cost ledger",
					"description": "Decode a cost ledger export with date, site_id and amount columns",
					"parameters":  []map[string]interface{}{source},
					"requestBody": uploadBody,
					"responses": map[string]interface{}{
						"201": jsonResponse("Entries stored", importResultSchema),
						"400": badRequest,
						"422": schemaMismatch,
					},
				},
			},
			"/api/v1/dashboard": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Get dashboard KPIs",
					"description": "Totals, per-site summaries and daily series for a month and task",
					"parameters":  []map[string]interface{}{monthOptional, task},
					"responses": map[string]interface{}{
						"200": jsonResponse("Successful response", objectSchema(map[string]interface{}{
							"month": map[string]string{"type": "string"},
							"task":  map[string]string{"type": "string"},
							"kpi":   kpiSchema,
						})),
						"400": badRequest,
					},
				},
			},
			"/api/v1/pnl": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Get site P&L",
					"description": "Per-site revenue, costs and gross profit for a month",
					"parameters":  []map[string]interface{}{monthRequired},
					"responses": map[string]interface{}{
						"200": jsonResponse("Successful response", objectSchema(map[string]interface{}{
							"month":  map[string]string{"type": "string"},
							"rows":   map[string]interface{}{"type": "array", "items": pnlRowSchema},
							"totals": pnlRowSchema,
							"rates":  ratesSchema,
						})),
						"400": badRequest,
					},
				},
			},
			"/api/v1/reports/{kind}": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Download a report",
					"description": "Billing, timesheet or site daily hours for a month as CSV or XLSX",
					"parameters": []map[string]interface{}{
						{
							"name":     "kind",
							"in":       "path",
							"required": true,
							"schema": map[string]interface{}{
								"type": "string",
								"enum": []string{"billing", "timesheet", "site-daily"},
							},
						},
						monthRequired,
						{
							"name":        "format",
							"in":          "query",
							"description": "Output format (default: csv)",
							"required":    false,
							"schema": map[string]interface{}{
								"type":    "string",
								"enum":    []string{"csv", "xlsx"},
								"default": "csv",
							},
						},
					},
					"responses": map[string]interface{}{
						"200": fileResponse,
						"400": badRequest,
						"404": jsonResponse("Unknown report kind", errorSchema),
					},
				},
			},
			"/api/v1/charts/dashboard": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Dashboard charts",
					"description": "Site output and daily series rendered as an HTML page",
					"parameters":  []map[string]interface{}{monthOptional, task},
					"responses": map[string]interface{}{
						"200": map[string]interface{}{
							"description": "HTML page",
							"content": map[string]interface{}{
								"text/html": map[string]interface{}{"schema": map[string]string{"type": "string"}},
							},
						},
					},
				},
			},
			"/api/v1/rates": map[string]interface{}{
				"get": map[string]interface{}{
					"summary": "Get rate configuration",
					"responses": map[string]interface{}{
						"200": jsonResponse("Current rates", ratesSchema),
					},
				},
				"put": map[string]interface{}{
					"summary": "Replace rate configuration",
					"requestBody": map[string]interface{}{
						"required": true,
						"content": map[string]interface{}{
							"application/json": map[string]interface{}{"schema": ratesSchema},
						},
					},
					"responses": map[string]interface{}{
						"200": jsonResponse("Saved rates", ratesSchema),
						"400": badRequest,
					},
				},
			},
			"/api/v1/tasks": map[string]interface{}{
				"get": map[string]interface{}{
					"summary": "List task options",
					"responses": map[string]interface{}{
						"200": jsonResponse("Task codes offered by the dashboard filter", map[string]interface{}{
							"type": "array",
							"items": objectSchema(map[string]interface{}{
								"code": map[string]string{"type": "string"},
								"unit": map[string]string{"type": "string"},
							}),
						}),
					},
				},
			},
			"/health": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Health check",
					"description": "Check if the API and its storage are reachable",
					"responses": map[string]interface{}{
						"200": jsonResponse("API is healthy", objectSchema(map[string]interface{}{
							"status":    map[string]string{"type": "string"},
							"timestamp": map[string]string{"type": "string", "format": "date-time"},
						})),
						"503": jsonResponse("Storage unreachable", objectSchema(map[string]interface{}{
							"status": map[string]string{"type": "string"},
						})),
					},
				},
			},
			"/metrics": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Prometheus metrics",
					"description": "Prometheus metrics endpoint for monitoring",
					"responses": map[string]interface{}{
						"200": map[string]interface{}{
							"description": "Prometheus metrics in text format",
							"content": map[string]interface{}{
								"text/plain": map[string]interface{}{
									"schema": map[string]string{"type": "string"},
								},
							},
						},
					},
				},
			},
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(spec)
}
