// Package domain contains the core business entities, value objects, and
// domain logic of the document pipeline: generation templates, generation
// and matching-score tasks, generated documents, and the application context
// they are rendered from. It is independent of any specific infrastructure
// or delivery mechanism.
package domain
