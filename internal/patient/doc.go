// Package patient persists patient records. Rows are owned by user
// accounts and every query is scoped by the owner's ID — a user can never
// read or modify another user's patients.
package patient
