// Package adminapi exposes tenant provisioning, lifecycle and migration
// operations over HTTP for operators.
//
// Every route requires "Authorization: Bearer <token>". Responses use one
// envelope: {"data": ..., "meta": ..., "error": {"code", "message", "details"}}.
// Partial failures keep their data: a halted rollout answers 422 with the
// migration report in data, and a failed tenant migration answers 422 with
// the recorded runs.
//
//	POST   /tenants                                   provision
//	GET    /tenants?status=active,suspended           list
//	GET    /tenants/{id}                              get
//	POST   /tenants/{id}/suspend                      suspend
//	POST   /tenants/{id}/activate                     activate
//	DELETE /tenants/{id}?mode=soft|hard               deprovision
//	POST   /tenants/purge?retention=720h              purge expired soft deletions
//	POST   /migrations                                migrate all tenants
//	POST   /tenants/{id}/migrations                   migrate one tenant
//	POST   /tenants/{id}/migrations/{version}/rollback
//	GET    /tenants/{id}/migrations                   history and applied versions
package adminapi
