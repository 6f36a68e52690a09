// Package testsupport holds helpers shared by package tests: temp-dir
// configurations, store setup, and image fixtures.
package testsupport
