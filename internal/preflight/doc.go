// Package preflight provides readiness checks for the executables, storage
// and sensor that tecscanner depends on.
//
// The CLI "tecscanner doctor" command runs RunAll and renders the results;
// each check is also usable on its own. Optional checks never make the
// overall report fail.
package preflight
