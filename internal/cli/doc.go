// Package cli provides input helpers shared by the restpcv commands:
// reading passwords without echo and reading credential batches.
package cli
