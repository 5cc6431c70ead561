// Package repository defines data access contracts for documents, workflow
// entities and owner resolution. SQL queries only — strictly persistence
// operations, no business logic.
package repository
