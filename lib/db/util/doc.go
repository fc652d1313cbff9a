// Package util provides the hashing and seeding helpers shared by the KVDB engines.
package util
