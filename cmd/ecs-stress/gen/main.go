// Command gen writes the components and systems used by ecs-stress.
//
//	go run ./gen -components 16 -systems 8 -out generated.go
//
// System i writes Component(i+1) from Component(i), so neighbouring systems
// conflict and the scheduler has to split them across stages.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"os"
	"text/template"

	"golang.org/x/tools/imports"
)

type params struct {
	Components int
	Systems    int
}

type system struct {
	Index int
	Read  int
	Write int
}

func (p params) ComponentIndices() []int {
	out := make([]int, p.Components)
	for i := range out {
		out[i] = i
	}
	return out
}

func (p params) SystemList() []system {
	out := make([]system, p.Systems)
	for i := range out {
		out[i] = system{Index: i, Read: i % p.Components, Write: (i + 1) % p.Components}
	}
	return out
}

// imports.Process groups and sorts the import block and drops unused
// entries.
const source = `// Code generated by ecs-stress/gen. DO NOT EDIT.

package main

import (
	"fmt"
	"math/rand/v2"
	"github.com/plus3/ecscore/ecs"
	"github.com/plus3/ecscore/gamedata"
	"github.com/plus3/ecscore/saveload"
)

const (
	componentCount = {{.Components}}
	systemCount    = {{.Systems}}
)
{{range .ComponentIndices}}
type Component{{.}} struct {
	Value float64 ` + "`yaml:\"value\" toml:\"value\" json:\"value\"`" + `
}
{{end}}
// RegisterAllGeneratedComponents registers every generated component.
func RegisterAllGeneratedComponents(registry *ecs.ComponentRegistry) {
{{- range .ComponentIndices}}
	ecs.RegisterComponent[Component{{.}}](registry)
{{- end}}
}

// RegisterAllGeneratedSaves registers every generated component for saving.
func RegisterAllGeneratedSaves(registry *saveload.Registry) {
{{- range .ComponentIndices}}
	saveload.Register[Component{{.}}](registry, "component_{{.}}")
{{- end}}
}

// NewGeneratedComponent returns generated component i with a random value.
func NewGeneratedComponent(i int, rng *rand.Rand) any {
	switch i {
{{- range .ComponentIndices}}
	case {{.}}:
		return Component{{.}}{Value: rng.Float64()}
{{- end}}
	}
	panic(fmt.Sprintf("no generated component %d", i))
}
{{range .SystemList}}
type System{{.Index}} struct {
	Entities ecs.Query[struct {
		*Component{{.Read}}
		*Component{{.Write}}
	}]
}

func (s *System{{.Index}}) Execute(frame *ecs.UpdateFrame) {
	for e := range s.Entities.Values() {
		e.Component{{.Write}}.Value += e.Component{{.Read}}.Value * frame.DeltaTime
	}
}
{{end}}
// AddAllGeneratedSystems adds every generated system.
func AddAllGeneratedSystems(b *gamedata.Builder) {
{{- range .SystemList}}
	b.With(&System{{.Index}}{}, "system_{{.Index}}")
{{- end}}
}
`

var tmpl = template.Must(template.New("generated").Parse(source))

func generate(p params) ([]byte, error) {
	if p.Components < 2 {
		return nil, fmt.Errorf("need at least 2 components, got %d", p.Components)
	}
	if p.Systems < 1 {
		return nil, fmt.Errorf("need at least 1 system, got %d", p.Systems)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, p); err != nil {
		return nil, err
	}
	return imports.Process("generated.go", buf.Bytes(), &imports.Options{
		Comments:   true,
		TabIndent:  true,
		TabWidth:   8,
		FormatOnly: false,
	})
}

func main() {
	var p params
	flag.IntVar(&p.Components, "components", 16, "number of generated components")
	flag.IntVar(&p.Systems, "systems", 8, "number of generated systems")
	out := flag.String("out", "generated.go", "output file")
	flag.Parse()

	src, err := generate(p)
	if err != nil {
		fmt.Fprintln(os.Stderr, "gen:", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*out, src, 0o644); err != nil {
		fmt.Fprintln(os.Stderr, "gen:", err)
		os.Exit(1)
	}
}
