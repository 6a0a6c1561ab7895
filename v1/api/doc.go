// Package api serves the read and ingest HTTP endpoints.
//
// Routes:
//
//	GET  /health
//	POST /produce                                   body sent to the produce topic
//	GET  /api/messages                              ?limit=&from=&to=
//	GET  /api/messages/topic/{topic}
//	GET  /api/messages/service/{service}
//	GET  /api/messages/level/{level}
//	GET  /api/stats/topic/{topic}
//	GET  /api/schemas
//	GET  /api/schemas/active
//	GET  /api/schemas/id/{id}
//	GET  /api/schemas/subject/{subject}
//	GET  /api/schemas/subject/{subject}/versions/{version}
//	POST /api/schemas/subject/{subject}/check       derive and compare, never registers
//	POST /api/schemas/infer                         canonical schema of the body
//	GET  /api/schemas/registry/subjects             external registry, [] when unavailable
package api
