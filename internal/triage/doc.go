// Package triage implements Acuity's hybrid decision pipeline. It defines
// the Engine (validate, encode, safety rules, classifier, escalation,
// explanation), the Service (IDs, audit persistence, notification fan-out),
// the Store interface, and the domain models.
package triage
