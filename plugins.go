package groupstate

import (
	"fmt"

	"github.com/jpalmerr/groupstate/module"
)

// Plugin extends a [Store] once it is fully wired, typically by registering
// hooks on its modules.
type Plugin func(*Store) error

// StrictMode returns a plugin that validates a module's invariants after
// each of its mutations. A violation is logged and then panics, so broken
// state is caught at the mutation that caused it. Only modules implementing
// [module.Validator] are checked.
func StrictMode() Plugin {
	return func(s *Store) error {
		for _, name := range s.Names() {
			m, _ := s.Module(name)
			v, ok := m.(module.Validator)
			if !ok {
				continue
			}
			m.OnMutation(func(mu module.Mutation) {
				if err := v.Validate(); err != nil {
					s.logger.Error("strict mode violation",
						"module", mu.Module,
						"mutation", mu.Type,
						"error", err,
					)
					panic(fmt.Errorf("strict mode: %s after %s: %w", mu.Module, mu.Type, err))
				}
			})
		}
		return nil
	}
}
