package version

import (
	"fmt"
	"testing"
)

func TestParseRequirementSpecifications(t *testing.T) {
	testCases := []struct {
		input  string
		result Requirement
		err    error
	}{
		{
			" numpy",
			Requirement{
				"numpy",
				SpecifierSet{},
				[]string{},
				"",
				nil,
			},
			nil,
		},
		{
			"A ( >=3.1.2)",
			Requirement{
				"A",
				SpecifierSet{
					{Operator: GreaterOrEqual, Version: MustParse("3.1.2")},
				},
				[]string{},
				"",
				nil,
			},
			nil,
		},
		{
			"A.B-C_D[security]",
			Requirement{
				"A.B-C_D",
				SpecifierSet{},
				[]string{"security"},
				"",
				nil,
			},
			nil,
		},
		{
			"name<=1",
			Requirement{
				"name",
				SpecifierSet{
					{Operator: LessOrEqual, Version: MustParse("1")},
				},
				[]string{},
				"",
				nil,
			},
			nil,
		},
		{
			"name[ extras , potato]<=1",
			Requirement{
				"name",
				SpecifierSet{
					{Operator: LessOrEqual, Version: MustParse("1")},
				},
				[]string{"extras", "potato"},
				"",
				nil,
			},
			nil,
		},
		{
			"name>=3,<2",
			Requirement{
				"name",
				SpecifierSet{
					{Operator: GreaterOrEqual, Version: MustParse("3")},
					{Operator: Less, Version: MustParse("2")},
				},
				[]string{},
				"",
				nil,
			},
			nil,
		},
		{
			"name@http://foo.com",
			Requirement{},
			ErrURLNotSupported,
		},
		{
			"python-dateutil>=2.1,<3.0.0",
			Requirement{
				"python-dateutil",
				SpecifierSet{
					{Operator: GreaterOrEqual, Version: MustParse("2.1")},
					{Operator: Less, Version: MustParse("3.0.0")},
				},
				[]string{},
				"",
				nil,
			},
			nil,
		},
		{
			"apache-beam[gcp] (<3,>=2.21)",
			Requirement{
				"apache-beam",
				SpecifierSet{
					{Operator: Less, Version: MustParse("3")},
					{Operator: GreaterOrEqual, Version: MustParse("2.21")},
				},
				[]string{"gcp"},
				"",
				nil,
			},
			nil,
		},
		{
			// Missing comma between versions
			"htmldoom (>=0.3<=0.4)",
			Requirement{
				"htmldoom",
				SpecifierSet{
					{Operator: GreaterOrEqual, Version: MustParse("0.3")},
					{Operator: LessOrEqual, Version: MustParse("0.4")},
				},
				nil,
				"",
				nil,
			},
			nil,
		},
		{
			"check-manifest; extra == 'dev'",
			Requirement{
				"check-manifest",
				SpecifierSet{},
				nil,
				`; extra == 'dev'`,
				nil,
			},
			nil,
		},
		{
			`check-test[dev] (!=1!3.2); platform_machine!="windows"`,
			Requirement{
				"check-test",
				SpecifierSet{
					{Operator: NotEqual, Version: MustParse("1!3.2")},
				},
				[]string{"dev"},
				`; platform_machine!="windows"`,
				nil,
			},
			nil,
		},
		{
			`functools32 (>=3.2.3) ; python_version < "3"`,
			Requirement{
				"functools32",
				SpecifierSet{
					{Operator: GreaterOrEqual, Version: MustParse("3.2.3")},
				},
				nil,
				`; python_version < "3"`,
				nil,
			},
			nil,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			r, err := ParseRequirement(tc.input)
			if err != tc.err {
				t.Fatalf("unexpected error, got: %v, want: %v", err, tc.err)
			}
			if err == nil {
				if tc.result.Name != r.Name {
					t.Fatalf("incorrect distribution name, got: %v, want: %v", r.Name, tc.result.Name)
				}
				if len(tc.result.SpecifierSet) != len(r.SpecifierSet) {
					t.Fatalf("incorrect specifier set, got: %v, want: %v", r.SpecifierSet, tc.result.SpecifierSet)
				}
				for i := 0; i < len(tc.result.SpecifierSet); i++ {
					if tc.result.SpecifierSet[i] != r.SpecifierSet[i] {
						t.Fatalf("incorrect specifier set, got: %v, want: %v", r.SpecifierSet, tc.result.SpecifierSet)
					}
				}
				if len(tc.result.Extras) != len(r.Extras) {
					t.Fatalf("incorrect extras, got: %v, want: %v", r.Extras, tc.result.Extras)
				}
				for i := 0; i < len(tc.result.Extras); i++ {
					if tc.result.Extras[i] != r.Extras[i] {
						t.Fatalf("incorrect extras, got: %v, want: %v", r.Extras, tc.result.Extras)
					}
				}
			}
		})
	}
}

type testEnvironment map[string]string

func (e testEnvironment) Get(k string) (string, error) {
	v, ok := e[k]
	if !ok {
		return "", fmt.Errorf("unknown environment variable: '%s'", k)
	}
	return v, nil
}

func TestRequirementEvaluation(t *testing.T) {
	env := testEnvironment{
		"extra": "test",

		"os_name":                        "",
		"sys_platform":                   "",
		"platform_machine":               "",
		"platform_python_implementation": "",
		"platform_release":               "0",
		"platform_system":                "",
		"platform_version":               "0",
		"python_version":                 "3.6",
		"python_full_version":            "0",
		"implementation_name":            "",
		"implementation_version":         "0",
	}

	testCases := []struct {
		input   string
		install bool
	}{
		{
			input:   `numpy`,
			install: true,
		},
		{
			input:   `numpy (>=1.16.0, <1.19.0) ; (python_version == "3.6") and extra == 'test'`,
			install: true,
		},
		{
			input:   `numpy[test, windows]`,
			install: true,
		},
		{
			input:   `numpy[windows]`,
			install: false,
		},
		{
			input:   `enum34; (python_version=='2.7' or python_version=='2.6' or python_version=='3.3')`,
			install: false,
		},
		{
			input:   `test; python_version>'2.7'`,
			install: true,
		},
		{
			input:   `test; python_version<'4'`,
			install: true,
		},
		{
			input:   `test; python_version>'3.8'`,
			install: false,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			d, err := ParseRequirement(tc.input)
			if err != nil {
				t.Fatal(err)
			}

			install, err := d.Evaluate(env)
			if err != nil {
				t.Fatal(err)
			}

			if install != tc.install {
				t.Fatalf("unexpected evaluation result, got: %v, expected: %v", install, tc.install)
			}
		})
	}
}

func TestRequirementString(t *testing.T) {
	testCases := []string{
		"numpy",
		"requests>=2.31,<3.0.0",
		"requests[security]>=2.30",
		"requests[security,socks]>=2.30,<3",
		`colorama ; sys_platform=='win32'`,
		`check-test[dev]>=1.0 ; platform_machine!="windows"`,
	}
	for _, input := range testCases {
		t.Run(input, func(t *testing.T) {
			req, err := ParseRequirement(input)
			if err != nil {
				t.Fatal(err)
			}
			if got := req.String(); got != input {
				t.Fatalf("String() did not round-trip, got: %q, want: %q", got, input)
			}
		})
	}
}
