package core

// DenylistVersion identifies the revision of the built-in system-path
// denylist below. Bump it whenever an entry is added or removed.
const DenylistVersion = 2

// DeniedPath is a path prefix that may never be an install target.
type DeniedPath struct {
	// Prefix is an absolute, slash-separated path prefix.
	Prefix string

	// FoldCase matches case-insensitively, for filesystems that do.
	FoldCase bool

	// AnyDrive matches the prefix under any Windows drive letter.
	AnyDrive bool
}

// SystemDenylist returns the system, program, and boot paths that are
// never safe install targets on the named platform.
func SystemDenylist(goos string) []DeniedPath {
	switch goos {
	case "windows":
		return windowsDenylist
	case "darwin":
		return darwinDenylist
	default:
		return unixDenylist
	}
}

var unixDenylist = []DeniedPath{
	{Prefix: "/bin"},
	{Prefix: "/boot"},
	{Prefix: "/dev"},
	{Prefix: "/etc"},
	{Prefix: "/lib"},
	{Prefix: "/lib32"},
	{Prefix: "/lib64"},
	{Prefix: "/proc"},
	{Prefix: "/root"},
	{Prefix: "/run"},
	{Prefix: "/sbin"},
	{Prefix: "/sys"},
	{Prefix: "/usr"},
	{Prefix: "/var"},
}

// /private/tmp and /private/var/folders stay allowed; /tmp and the
// per-user temporary directories resolve there through symlinks.
var darwinDenylist = append([]DeniedPath{
	{Prefix: "/Applications", FoldCase: true},
	{Prefix: "/Library", FoldCase: true},
	{Prefix: "/System", FoldCase: true},
	{Prefix: "/cores", FoldCase: true},
	{Prefix: "/private/etc", FoldCase: true},
	{Prefix: "/private/var/db", FoldCase: true},
	{Prefix: "/private/var/root", FoldCase: true},
	{Prefix: "/private/var/run", FoldCase: true},
}, unixDenylist...)

var windowsDenylist = []DeniedPath{
	{Prefix: "/Windows", FoldCase: true, AnyDrive: true},
	{Prefix: "/Program Files", FoldCase: true, AnyDrive: true},
	{Prefix: "/Program Files (x86)", FoldCase: true, AnyDrive: true},
	{Prefix: "/ProgramData", FoldCase: true, AnyDrive: true},
	{Prefix: "/System Volume Information", FoldCase: true, AnyDrive: true},
	{Prefix: "/Recovery", FoldCase: true, AnyDrive: true},
}
