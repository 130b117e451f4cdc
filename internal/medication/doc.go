// Package medication persists medications and their dose schedules.
// Medications reference a patient and carry the owning user's ID so that
// row-level scoping never needs an extra join at the call site.
package medication
