// Package health reports service and dataset availability.
package health

import (
	"github.com/geoglim/clipserver/internal/model"
	"github.com/geoglim/clipserver/internal/registry"
)

// APIVersion is reported by the root endpoint.
const APIVersion = "1.0.0"

// Checker summarizes dataset availability for the root endpoint.
type Checker struct {
	reg *registry.Registry
}

func NewChecker(reg *registry.Registry) *Checker {
	return &Checker{reg: reg}
}

// Check probes each registered dataset's file presence. The service is
// "healthy" when at least one dataset is servable, "no_datasets" otherwise:
// the process is still up and reports what is missing.
func (c *Checker) Check() model.Health {
	available := make(map[string]bool)
	any := false
	for _, name := range c.reg.Names() {
		ok := c.reg.Available(name)
		available[string(name)] = ok
		any = any || ok
	}
	status := "healthy"
	if !any {
		status = "no_datasets"
	}
	return model.Health{
		Status:            status,
		DatasetsAvailable: available,
		APIVersion:        APIVersion,
	}
}
