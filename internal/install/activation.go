package install

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/conn-castle/shovel/internal/envfile"
	"github.com/conn-castle/shovel/internal/filelock"
	"github.com/conn-castle/shovel/internal/messages"
)

// activation is the user's activation environment: the env file plus the
// shell script generated from it. Updates are read-modify-write under a
// cross-process lock.
type activation struct {
	mu         sync.Mutex
	envPath    string
	scriptPath string
	sys        System
}

// Load returns the current activation environment.
func (a *activation) load() (*envfile.Env, error) {
	data, err := a.sys.ReadFile(a.envPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return envfile.New(), nil
		}
		return nil, fmt.Errorf(messages.InstallReadFileFmt, a.envPath, err)
	}
	env, err := envfile.Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf(messages.InstallActivationParseFmt, a.envPath, err)
	}
	return env, nil
}

func (a *activation) update(ctx context.Context, fn func(env *envfile.Env) error) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return filelock.With(ctx, a.envPath+lockSuffix, func() error {
		env, err := a.load()
		if err != nil {
			return err
		}
		if err := fn(env); err != nil {
			return err
		}
		if err := a.sys.WriteFileAtomic(a.envPath, []byte(env.Format()), 0o644); err != nil {
			return fmt.Errorf(messages.InstallActivationWriteFmt, a.envPath, err)
		}
		if err := a.sys.WriteFileAtomic(a.scriptPath, []byte(env.Script()), 0o644); err != nil {
			return fmt.Errorf(messages.InstallActivationWriteFmt, a.scriptPath, err)
		}
		return nil
	})
}

// envEdit is what one link step changed, kept for rollback.
type envEdit struct {
	added []string
	prev  map[string]*string
}

// apply adds path entries and sets variables.
func (a *activation) apply(ctx context.Context, path []string, vars map[string]string) (envEdit, error) {
	edit := envEdit{prev: make(map[string]*string)}
	if len(path) == 0 && len(vars) == 0 {
		return edit, nil
	}
	err := a.update(ctx, func(env *envfile.Env) error {
		edit.added = env.AddPath(path...)
		for _, key := range sortedKeys(vars) {
			prev, existed, err := env.Set(key, vars[key])
			if err != nil {
				return err
			}
			if _, seen := edit.prev[key]; seen {
				continue
			}
			if existed {
				edit.prev[key] = &prev
			} else {
				edit.prev[key] = nil
			}
		}
		return nil
	})
	if err != nil {
		return envEdit{}, err
	}
	return edit, nil
}

// revert undoes edit.
func (a *activation) revert(ctx context.Context, edit envEdit) error {
	if len(edit.added) == 0 && len(edit.prev) == 0 {
		return nil
	}
	return a.update(ctx, func(env *envfile.Env) error {
		env.RemovePath(edit.added...)
		for key, prev := range edit.prev {
			if prev == nil {
				env.Unset(key)
				continue
			}
			if _, _, err := env.Set(key, *prev); err != nil {
				return err
			}
		}
		return nil
	})
}

// sharedEnv is the activation state other installed packages still own.
type sharedEnv struct {
	path map[string]bool
	vars map[string]string
}

// release removes path entries and variables a package owned. Entries in
// shared stay. A variable is only touched while it still holds the owned
// value; when another package also sets it, that package's value returns.
func (a *activation) release(ctx context.Context, path []string, vars map[string]string, shared sharedEnv) error {
	var drop []string
	for _, entry := range path {
		if !shared.path[entry] {
			drop = append(drop, entry)
		}
	}
	if len(drop) == 0 && len(vars) == 0 {
		return nil
	}
	return a.update(ctx, func(env *envfile.Env) error {
		env.RemovePath(drop...)
		for _, key := range sortedKeys(vars) {
			if current, ok := env.Vars[key]; !ok || current != vars[key] {
				continue
			}
			if other, owned := shared.vars[key]; owned {
				if _, _, err := env.Set(key, other); err != nil {
					return err
				}
				continue
			}
			env.Unset(key)
		}
		return nil
	})
}
