package version

import (
	"fmt"
)

// Version comparison operators recognized by a specifier clause.
// https://peps.python.org/pep-0440/#version-specifiers
const (
	LessOrEqual     = "<="
	Less            = "<"
	NotEqual        = "!="
	Equal           = "=="
	GreaterOrEqual  = ">="
	Greater         = ">"
	CompatibleEqual = "~="
	TripleEqual     = "==="
)

// Clause is a single version comparison test: an operator paired with the
// version it compares against. A SpecifierSet is an ordered list of Clauses
// that must all hold for a candidate version to satisfy it.
type Clause struct {
	Operator string
	Version  Version
}

// SpecifierSet is an ordered collection of Clauses, evaluated with AND
// semantics by Satisfies.
type SpecifierSet []Clause

func (vr Clause) String() string {
	if vr.Version.Unspecified() {
		return "<latest>"
	}
	return fmt.Sprintf("%s%s", vr.Operator, vr.Version)
}

// Contains reports whether v satisfies this single clause, ignoring the
// pre-release exclusion rule (that rule applies across a whole SpecifierSet,
// see Satisfies).
func (vr Clause) Contains(v Version) bool {
	switch vr.Operator {
	case LessOrEqual:
		return Compare(v, vr.Version) <= 0
	case Less:
		return Compare(v, vr.Version) < 0
	case NotEqual:
		return Compare(v, vr.Version) != 0
	case Equal:
		return Compare(v, vr.Version) == 0
	case GreaterOrEqual:
		return Compare(v, vr.Version) >= 0
	case Greater:
		return Compare(v, vr.Version) > 0
	case CompatibleEqual:
		return compatibleRelease(v, vr.Version)
	case TripleEqual:
		// Treat === as equivalent to == (should be string equality)
		return Compare(v, vr.Version) == 0
	default:
		panic(fmt.Sprintf("unknown version comparison operator: '%s'", vr.Operator))
	}
}

// compatibleRelease implements PEP 440's "~=" operator: "~=V.N" is
// equivalent to ">=V.N, ==V.*" where the trailing release segment of V.N is
// truncated for the upper bound, e.g. "~=2.2" means ">=2.2, ==2.*" and
// "~=1.4.5" means ">=1.4.5, ==1.4.*".
func compatibleRelease(v, bound Version) bool {
	if Compare(v, bound) < 0 {
		return false
	}

	upper := bound
	if upper.ReleaseVersions <= 1 {
		return false
	}
	upper.Release[upper.ReleaseVersions-1] = 0
	upper.ReleaseVersions--
	upper.Wildcard = true
	upper.PreReleasePhase = 0
	upper.PreReleaseVersion = 0
	upper.PostRelease = false
	upper.PostReleaseVersion = 0
	upper.DevRelease = false
	upper.DevReleaseVersion = 0
	upper.LocalVersion = ""

	return Compare(v, upper) == 0
}

// isPrerelease reports whether the clause itself names a pre-release or dev
// version. Used by Satisfies to decide whether pre-release candidates are in
// scope for a SpecifierSet at all.
func (vr Clause) isPrerelease() bool {
	return vr.Version.PreReleasePhase != 0 || vr.Version.DevRelease
}

// Satisfies reports whether v meets every clause in ss (version_in). Unless
// at least one clause explicitly names a pre-release or dev version, a
// pre-release candidate is excluded even if it would otherwise numerically
// satisfy every clause — this mirrors pip's default pre-release handling.
func Satisfies(v Version, ss SpecifierSet) bool {
	if (v.PreReleasePhase != 0 || v.DevRelease) && !ss.allowsPrerelease() {
		return false
	}

	for _, clause := range ss {
		if !clause.Contains(v) {
			return false
		}
	}

	return true
}

func (ss SpecifierSet) allowsPrerelease() bool {
	for _, clause := range ss {
		if clause.isPrerelease() {
			return true
		}
	}
	return false
}

// Minimal reads multiple versions requirements and tries to establish what
// the minimal required version is in that range. If a lower bound can not
// be found and a higher lower bound is specified the returned version is
// the highest lower bound.
//
//	<1.19.0, >=1.16.0 -> 1.16.0
//	<1.3.4, >=1.3.6 -> 1.3.6
//
// The intention of this function is to extract the minimal version the
// package was verified to work with.
func Minimal(vrs []Clause) Version {
	if len(vrs) == 0 {
		return Version{}
	}

	var highestLowerBound Version
	for _, vr := range vrs {
		switch vr.Operator {
		case GreaterOrEqual, CompatibleEqual, Equal, TripleEqual:
			if vr.Version.GreaterThan(highestLowerBound) {
				highestLowerBound = vr.Version
			}
		}
	}

	return highestLowerBound
}
