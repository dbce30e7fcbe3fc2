// Package featmy implements the navigation and session core of the FEATMY
// personal-training application: trainers (personal) manage students,
// exercises, and workout plans; students activate their accounts and report
// on completed workout days.
//
// Session lifecycle:
//   - Manager owns the process-wide session state. It subscribes to an
//     IdentityProvider for identity-change notifications and re-derives the
//     role from the profile store on every change; the role is never cached
//     across identities. Initialize is idempotent and resolves for all
//     callers on the provider's first notification; Ready exposes that as a
//     one-shot channel.
//   - Student onboarding is a two-phase migration: a trainer creates a
//     provisional profile record (status pending) plus a pending-activation
//     index entry keyed by the sanitized email; ActivateStudentAccount
//     re-keys the record to the new identity's id and is safe to retry to
//     completion after a crash at any step.
//
// Navigation:
//   - Router serializes page transitions through a FIFO queue with tail
//     de-duplication; exactly one navigation is in flight at a time. Role
//     guards redirect unauthenticated and unauthorized requests to the login
//     path or the session role's canonical dashboard.
//   - Pages are statically registered controllers (PageRegistry); a failed
//     page load is rendered in place and never corrupts the queue.
//
// Activity sinks:
//   - ActivitySink receives login, signup, activation, and navigation
//     events, plus reconcile.pending events describing best-effort writes
//     that failed after their operation's primary effect committed. Sinks run
//     best-effort; errors are logged, never propagated.
package featmy
