// Package storage provisions the blob bucket of a new workspace.
package storage
