package scripting

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/cory-johannsen/keeper/internal/game/dice"
)

var (
	// ErrNotLoaded is returned when a macro is called before Load succeeded.
	ErrNotLoaded = errors.New("scripting: no macros loaded")
	// ErrMacroNotFound is returned when no global function has the macro's name.
	ErrMacroNotFound = errors.New("scripting: macro not found")
)

// Manager owns the sandboxed VM holding the keeper's macros.
//
// A LState is single-threaded; Manager serializes every call on mu.
type Manager struct {
	mu        sync.Mutex
	state     *lua.LState
	cancel    func()
	macros    []string
	instLimit int
	roller    *dice.Roller
	logger    *zap.Logger
}

// NewManager creates a Manager whose macros roll with roller.
//
// Precondition: roller and logger must be non-nil; instLimit >= 0 (0 uses
// DefaultInstructionLimit).
// Postcondition: Returns a non-nil Manager with no macros loaded.
func NewManager(roller *dice.Roller, logger *zap.Logger, instLimit int) *Manager {
	if roller == nil {
		panic("scripting: NewManager requires a non-nil roller")
	}
	if logger == nil {
		panic("scripting: NewManager requires a non-nil logger")
	}
	return &Manager{roller: roller, logger: logger, instLimit: instLimit}
}

// Load creates a fresh sandboxed VM, registers the keeper module, then
// executes every *.lua file in dir in lexicographic order. Global functions
// defined by those files become callable macros. A successful Load replaces
// the previous VM; a failed one leaves it untouched.
//
// Precondition: dir must be a readable directory.
// Postcondition: Returns an error on a read or Lua load failure.
func (m *Manager) Load(dir string) error {
	L, cancel := NewSandboxedState(m.instLimit)
	m.RegisterModules(L)
	builtin := globalFunctions(L)

	entries, err := os.ReadDir(dir)
	if err != nil {
		cancel()
		L.Close()
		return fmt.Errorf("scripting: reading macro dir %q: %w", dir, err)
	}

	var luaFiles []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".lua" {
			luaFiles = append(luaFiles, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(luaFiles)

	for _, path := range luaFiles {
		if err := L.DoFile(path); err != nil {
			cancel()
			L.Close()
			return fmt.Errorf("scripting: loading %q: %w", path, err)
		}
	}

	var macros []string
	for _, name := range globalFunctions(L) {
		if !contains(builtin, name) {
			macros = append(macros, name)
		}
	}

	m.mu.Lock()
	m.closeLocked()
	m.state = L
	m.cancel = cancel
	m.macros = macros
	m.mu.Unlock()

	m.logger.Debug("macros loaded",
		zap.String("dir", dir),
		zap.Int("files", len(luaFiles)),
		zap.Strings("macros", macros),
	)
	return nil
}

// Macros returns the names of the loaded macros in sorted order.
func (m *Manager) Macros() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.macros...)
}

// Call invokes the named macro with a fresh instruction budget and returns
// its return values.
//
// Precondition: args must be valid lua.LValue instances.
// Postcondition: Returns ErrNotLoaded, ErrMacroNotFound, a wrapped Lua error,
// or the macro's results in order.
func (m *Manager) Call(name string, args ...lua.LValue) ([]lua.LValue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	L := m.state
	if L == nil {
		return nil, ErrNotLoaded
	}
	fn, ok := L.GetGlobal(name).(*lua.LFunction)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrMacroNotFound, name)
	}

	cancel := Limit(L, m.instLimit)
	defer cancel()

	top := L.GetTop()
	if err := L.CallByParam(lua.P{
		Fn:      fn,
		NRet:    lua.MultRet,
		Protect: true,
	}, args...); err != nil {
		m.logger.Warn("macro failed", zap.String("macro", name), zap.Error(err))
		return nil, fmt.Errorf("scripting: running %q: %w", name, err)
	}

	n := L.GetTop() - top
	out := make([]lua.LValue, n)
	for i := 0; i < n; i++ {
		out[i] = L.Get(top + i + 1)
	}
	L.Pop(n)
	return out, nil
}

// Close releases the VM. Later calls return ErrNotLoaded.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeLocked()
	m.macros = nil
}

func (m *Manager) closeLocked() {
	if m.state == nil {
		return
	}
	if m.cancel != nil {
		m.cancel()
	}
	m.state.Close()
	m.state = nil
	m.cancel = nil
}

// ArgsFromStrings converts command-line arguments to Lua values: numbers
// become LNumber, "true" and "false" become LBool, anything else LString.
func ArgsFromStrings(in []string) []lua.LValue {
	out := make([]lua.LValue, 0, len(in))
	for _, s := range in {
		switch s {
		case "true":
			out = append(out, lua.LTrue)
			continue
		case "false":
			out = append(out, lua.LFalse)
			continue
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			out = append(out, lua.LNumber(f))
			continue
		}
		out = append(out, lua.LString(s))
	}
	return out
}

func globalFunctions(L *lua.LState) []string {
	var names []string
	L.G.Global.ForEach(func(k, v lua.LValue) {
		if _, ok := v.(*lua.LFunction); ok {
			if s, ok := k.(lua.LString); ok {
				names = append(names, string(s))
			}
		}
	})
	sort.Strings(names)
	return names
}

func contains(sorted []string, s string) bool {
	i := sort.SearchStrings(sorted, s)
	return i < len(sorted) && sorted[i] == s
}
