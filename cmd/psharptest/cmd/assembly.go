package cmd

import (
	"fmt"
	"plugin"

	"github.com/psharp-go/psharp"
)

// RegisterFunc is the symbol psharptest looks up in a compiled assembly
// plugin (built with `go build -buildmode=plugin`): it registers every
// MachineType/MachineType-monitor this test exercises and seeds the
// first machine(s), mirroring a P# program's static machine declarations
// without Go reflection (spec §9's "explicit MachineType builder").
type RegisterFunc func(rt *psharp.Runtime) error

// loadAssembly opens the plugin at path and resolves its exported
// "PsharpRegister" symbol.
func loadAssembly(path string) (RegisterFunc, error) {
	p, err := plugin.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening assembly %s: %v", psharp.ErrMachineTypeNotFound, path, err)
	}
	sym, err := p.Lookup("PsharpRegister")
	if err != nil {
		return nil, fmt.Errorf("%w: assembly %s does not export PsharpRegister: %v", psharp.ErrMachineTypeNotFound, path, err)
	}
	fn, ok := sym.(func(rt *psharp.Runtime) error)
	if !ok {
		return nil, fmt.Errorf("%w: assembly %s: PsharpRegister has the wrong signature", psharp.ErrMachineTypeNotFound, path)
	}
	return fn, nil
}
