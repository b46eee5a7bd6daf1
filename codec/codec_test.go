package codec_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/tailored-agentic-units/stateopt/codec"
	"github.com/tailored-agentic-units/stateopt/graph"
)

const definition = `{
  "Comment": "greeting",
  "StartAt": "Hello",
  "States": {
    "Hello": {
      "Type": "Pass",
      "Parameters": {"msg.$": "States.Format('hi {}', $.name)", "count": 2},
      "ResultPath": "$.out",
      "Next": "Check"
    },
    "Check": {
      "Type": "Choice",
      "Choices": [{"Variable": "$.flag", "StringEquals": "true", "Next": "Done"}],
      "Default": "Done"
    },
    "Done": {"Type": "Succeed", "OutputPath": null}
  }
}`

func machine(t *testing.T) graph.Machine {
	t.Helper()
	m, err := codec.Decode([]byte(definition), codec.JSON)
	if err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	return m
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		name    string
		want    codec.Format
		wantErr bool
	}{
		{"json", codec.JSON, false},
		{"YAML", codec.YAML, false},
		{"yml", codec.YAML, false},
		{"proto", codec.Proto, false},
		{"binpb", codec.Proto, false},
		{"xml", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := codec.ParseFormat(tt.name)
			if tt.wantErr {
				if !errors.Is(err, codec.ErrUnknownFormat) {
					t.Errorf("got error %v, want %v", err, codec.ErrUnknownFormat)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseFormat failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatOf(t *testing.T) {
	tests := []struct {
		filename string
		want     codec.Format
	}{
		{"machine.json", codec.JSON},
		{"machine.yaml", codec.YAML},
		{"dir/machine.yml", codec.YAML},
		{"machine.pb", codec.Proto},
		{"machine.asl", codec.JSON},
		{"machine", codec.JSON},
	}

	for _, tt := range tests {
		if got := codec.FormatOf(tt.filename); got != tt.want {
			t.Errorf("FormatOf(%q) = %q, want %q", tt.filename, got, tt.want)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	for _, f := range []codec.Format{codec.JSON, codec.YAML, codec.Proto} {
		t.Run(string(f), func(t *testing.T) {
			m := machine(t)

			data, err := codec.Encode(m, f)
			if err != nil {
				t.Fatalf("Encode failed: %v", err)
			}
			got, err := codec.Decode(data, f)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if diff := cmp.Diff(m, got); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestEncode_YAMLBlockStyle(t *testing.T) {
	data, err := codec.Encode(machine(t), codec.YAML)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	out := string(data)

	for _, want := range []string{
		"StartAt: Hello\n",
		"Type: Pass\n",
		"StringEquals: \"true\"\n",
		"OutputPath: null\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, `"Type":`) {
		t.Errorf("output should not use flow style:\n%s", out)
	}
}

func TestDecode_YAML(t *testing.T) {
	src := `
StartAt: Hello
States:
  Hello:
    Type: Pass
    Result: world
    ResultPath: null
    End: true
`
	m, err := codec.Decode([]byte(src), codec.YAML)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	want := graph.Machine{
		StartAt: "Hello",
		States: graph.States{
			"Hello": &graph.PassState{Result: "world", ResultPath: graph.NullPath(), End: true},
		},
	}
	if diff := cmp.Diff(want, m); diff != "" {
		t.Errorf("machine mismatch (-want +got):\n%s", diff)
	}
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
		f    codec.Format
	}{
		{"bad json", `{"StartAt":`, codec.JSON},
		{"bad yaml", "StartAt: [", codec.YAML},
		{"bad proto", "\xff\xff", codec.Proto},
		{"unknown state type", `{"StartAt": "A", "States": {"A": {"Type": "Sleep"}}}`, codec.JSON},
		{"unknown format", `{}`, codec.Format("xml")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := codec.Decode([]byte(tt.data), tt.f); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestReadWrite(t *testing.T) {
	m := machine(t)

	var buf bytes.Buffer
	if err := codec.Write(&buf, m, codec.JSON); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if !strings.HasSuffix(buf.String(), "}\n") {
		t.Errorf("json output should end with a newline")
	}

	got, err := codec.Read(&buf, codec.JSON)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if diff := cmp.Diff(m, got); diff != "" {
		t.Errorf("machine mismatch (-want +got):\n%s", diff)
	}
}

func TestReadFile(t *testing.T) {
	m := machine(t)
	dir := t.TempDir()

	for _, name := range []string{"machine.json", "machine.yaml", "machine.pb"} {
		t.Run(name, func(t *testing.T) {
			data, err := codec.Encode(m, codec.FormatOf(name))
			if err != nil {
				t.Fatalf("Encode failed: %v", err)
			}
			path := filepath.Join(dir, name)
			if err := os.WriteFile(path, data, 0o644); err != nil {
				t.Fatalf("failed to write file: %v", err)
			}

			got, err := codec.ReadFile(path)
			if err != nil {
				t.Fatalf("ReadFile failed: %v", err)
			}
			if diff := cmp.Diff(m, got); diff != "" {
				t.Errorf("machine mismatch (-want +got):\n%s", diff)
			}
		})
	}

	if _, err := codec.ReadFile(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestValue(t *testing.T) {
	m := machine(t)

	v, err := codec.ToValue(m)
	if err != nil {
		t.Fatalf("ToValue failed: %v", err)
	}
	if v["StartAt"] != "Hello" {
		t.Errorf("StartAt = %v, want Hello", v["StartAt"])
	}

	got, err := codec.FromValue(v)
	if err != nil {
		t.Fatalf("FromValue failed: %v", err)
	}
	if diff := cmp.Diff(m, got); diff != "" {
		t.Errorf("machine mismatch (-want +got):\n%s", diff)
	}
}
