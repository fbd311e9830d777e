package nix

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/doeshing/nixsay/internal/domain"
	"github.com/doeshing/nixsay/internal/pkg/filesystem"
	"github.com/doeshing/nixsay/internal/ports"
)

const defaultProfilesDir = "/nix/var/nix/profiles"

// errNotServed tells the adapter to hand this call to the subprocess backend.
var errNotServed = errors.New("native backend cannot serve this request")

// NativeOptions locates the on-disk Nix state.
type NativeOptions struct {
	ProfilesDir   string
	UserProfile   string
	CurrentSystem string
}

// NativeBackend answers read-only queries from the Nix state on disk without spawning
// processes.
type NativeBackend struct {
	profilesDir   string
	userProfile   string
	currentSystem string
}

// NewNativeBackend builds the in-process backend.
func NewNativeBackend(opts NativeOptions) *NativeBackend {
	return &NativeBackend{
		profilesDir:   defaultString(filesystem.ExpandPath(opts.ProfilesDir), defaultProfilesDir),
		userProfile:   defaultString(filesystem.ExpandPath(opts.UserProfile), filepath.Join(filesystem.UserHomeDir(), ".nix-profile")),
		currentSystem: defaultString(filesystem.ExpandPath(opts.CurrentSystem), "/run/current-system"),
	}
}

// Name implements ports.Backend.
func (n *NativeBackend) Name() string {
	return domain.BackendNative
}

// Probe checks that the Nix state directories are readable.
func (n *NativeBackend) Probe() error {
	info, err := os.Stat(n.profilesDir)
	if err != nil {
		return fmt.Errorf("profiles dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("profiles dir %s is not a directory", n.profilesDir)
	}
	if _, err := os.ReadDir(n.profilesDir); err != nil {
		return fmt.Errorf("read profiles dir: %w", err)
	}
	return nil
}

// Supports implements ports.Backend.
func (n *NativeBackend) Supports(spec domain.CommandSpec) bool {
	switch spec.Kind {
	case "list_installed", "list_generations", "check_status":
		return !spec.RequiresPrivilege
	}
	return false
}

// Run implements ports.Backend.
func (n *NativeBackend) Run(ctx context.Context, spec domain.CommandSpec) (domain.RawResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.RawResult{Backend: domain.BackendNative}, timeoutError(ctx, "")
	}

	var (
		out string
		err error
	)
	switch spec.Kind {
	case "list_installed":
		out, err = n.listInstalled()
	case "list_generations":
		out, err = n.listGenerations(spec)
	case "check_status":
		out, err = n.systemVersion()
	default:
		err = errNotServed
	}
	if err != nil {
		return domain.RawResult{Backend: domain.BackendNative}, err
	}
	return domain.RawResult{ExitOK: true, Stdout: out, Backend: domain.BackendNative, Attempts: 1}, nil
}

type profileManifest struct {
	Version  int             `json:"version"`
	Elements json.RawMessage `json:"elements"`
}

type manifestElement struct {
	AttrPath   string   `json:"attrPath"`
	StorePaths []string `json:"storePaths"`
	Active     *bool    `json:"active"`
}

// listInstalled reads the user profile's manifest.json. Legacy nix-env profiles have no
// JSON manifest and are left to the CLI.
func (n *NativeBackend) listInstalled() (string, error) {
	data, err := os.ReadFile(filepath.Join(n.userProfile, "manifest.json"))
	if err != nil {
		return "", errNotServed
	}
	var manifest profileManifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return "", errNotServed
	}

	var elements []manifestElement
	if len(manifest.Elements) > 0 && manifest.Elements[0] == '{' {
		byName := map[string]manifestElement{}
		if err := json.Unmarshal(manifest.Elements, &byName); err != nil {
			return "", errNotServed
		}
		for _, el := range byName {
			elements = append(elements, el)
		}
	} else if len(manifest.Elements) > 0 {
		if err := json.Unmarshal(manifest.Elements, &elements); err != nil {
			return "", errNotServed
		}
	}

	var names []string
	for _, el := range elements {
		if el.Active != nil && !*el.Active {
			continue
		}
		for _, path := range el.StorePaths {
			if name := storePathName(path); name != "" {
				names = append(names, name)
			}
		}
	}
	sort.Strings(names)
	if len(names) == 0 {
		return "", nil
	}
	return strings.Join(names, "\n") + "\n", nil
}

var generationLink = regexp.MustCompile(`^(.+)-(\d+)-link$`)

type generation struct {
	number  int
	created time.Time
}

// listGenerations mirrors `nix-env --list-generations` for the profile named by the
// spec's -p argument (the system profile by default).
func (n *NativeBackend) listGenerations(spec domain.CommandSpec) (string, error) {
	profile := "system"
	for i, arg := range spec.Args {
		if arg != "-p" || i+1 >= len(spec.Args) {
			continue
		}
		dir := filepath.Dir(spec.Args[i+1])
		if dir != filepath.Clean(n.profilesDir) && dir != defaultProfilesDir {
			return "", errNotServed
		}
		profile = filepath.Base(spec.Args[i+1])
	}

	entries, err := os.ReadDir(n.profilesDir)
	if err != nil {
		return "", errNotServed
	}
	var gens []generation
	for _, entry := range entries {
		m := generationLink.FindStringSubmatch(entry.Name())
		if m == nil || m[1] != profile {
			continue
		}
		number, _ := strconv.Atoi(m[2])
		info, err := os.Lstat(filepath.Join(n.profilesDir, entry.Name()))
		if err != nil {
			continue
		}
		gens = append(gens, generation{number: number, created: info.ModTime()})
	}
	if len(gens) == 0 {
		return "", errNotServed
	}
	sort.Slice(gens, func(i, j int) bool { return gens[i].number < gens[j].number })

	current := -1
	if target, err := os.Readlink(filepath.Join(n.profilesDir, profile)); err == nil {
		if m := generationLink.FindStringSubmatch(filepath.Base(target)); m != nil {
			current, _ = strconv.Atoi(m[2])
		}
	}

	var b strings.Builder
	for _, g := range gens {
		fmt.Fprintf(&b, "%5d   %s", g.number, g.created.Format("2006-01-02 15:04:05"))
		if g.number == current {
			b.WriteString("   (current)")
		}
		b.WriteByte('\n')
	}
	return b.String(), nil
}

func (n *NativeBackend) systemVersion() (string, error) {
	data, err := os.ReadFile(filepath.Join(n.currentSystem, "nixos-version"))
	if err != nil {
		return "", errNotServed
	}
	return strings.TrimSpace(string(data)) + "\n", nil
}

// storePathName turns /nix/store/<hash>-<name> into <name>.
func storePathName(path string) string {
	base := filepath.Base(path)
	if i := strings.IndexByte(base, '-'); i > 0 && i < len(base)-1 {
		return base[i+1:]
	}
	return ""
}

func defaultString(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

var _ ports.Backend = (*NativeBackend)(nil)
