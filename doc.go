// Package crm provides the credential, session, and audit core for a
// staffing CRM. The surrounding application (CRUD forms, dashboards,
// exports) stays outside; this module owns the parts with real contracts:
//
// Single-use tokens:
//   - TokenService issues cryptographically random secrets for email
//     verification and password reset. Only the SHA-256 digest is ever
//     persisted; consumption looks records up by digest alone so token
//     endpoints cannot be used to enumerate accounts.
//
// Session claims:
//   - Authority converts a credential login into signed SessionClaims and
//     re-authorizes the stored role on every refresh. Claims are never
//     trusted verbatim across requests; a deleted identity downgrades to
//     anonymous claims instead of erroring.
//
// Audit trail:
//   - The changeset package computes order-independent field diffs, and the
//     audit package persists bounded, best-effort entries. Audit failures
//     never abort the mutation that triggered them.
//
// Credential flows (signup, verify, reset, resend) are plain command
// handlers that orchestrate the token service, the repositories, and a
// Mailer collaborator, and always answer non-enumerating responses.
package crm
