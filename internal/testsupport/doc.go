// Package testsupport provides shared fixtures for package tests: temp
// configurations with a fake mount table, a scripted capture runner, and
// controller construction helpers.
package testsupport
