package ca

import (
	"fmt"

	"github.com/adamscao/cvca/pkg/cvc"
	"github.com/adamscao/cvca/pkg/cvc/cvctest"
)

// providerFactories maps the provider names accepted in configuration to
// constructors. Real smart-card deployments plug their own suite in through
// RegisterProvider at startup.
var providerFactories = map[string]func() cvc.Provider{
	"insecure-test": func() cvc.Provider { return cvctest.Provider{} },
}

// RegisterProvider makes a signature-suite provider available under the given
// configuration name. It panics on a duplicate name.
func RegisterProvider(name string, factory func() cvc.Provider) {
	if _, dup := providerFactories[name]; dup {
		panic(fmt.Sprintf("ca: provider %q already registered", name))
	}
	providerFactories[name] = factory
}

// NewProvider instantiates the provider registered under name
func NewProvider(name string) (cvc.Provider, error) {
	factory, ok := providerFactories[name]
	if !ok {
		return nil, fmt.Errorf("unknown crypto provider: %q", name)
	}
	return factory(), nil
}
