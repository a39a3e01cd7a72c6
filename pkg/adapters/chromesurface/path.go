package chromesurface

import (
	"os"
	"os/exec"
	"runtime"
)

// ResolveChromePath resolves the Chrome executable path in order: explicit
// path, CHROME_PATH environment variable, then system defaults (Chromium
// before Chrome per platform).
func ResolveChromePath(explicitPath string) string {
	if explicitPath != "" {
		return explicitPath
	}
	if envPath := os.Getenv("CHROME_PATH"); envPath != "" {
		return envPath
	}
	return findSystemChrome()
}

func findSystemChrome() string {
	var candidates []string

	switch runtime.GOOS {
	case "darwin":
		candidates = []string{
			"/Applications/Chromium.app/Contents/MacOS/Chromium",
			"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
			"/Applications/Google Chrome Canary.app/Contents/MacOS/Google Chrome Canary",
		}
	case "linux":
		candidates = []string{
			"chromium",
			"chromium-browser",
			"google-chrome-stable",
			"google-chrome",
		}
	case "windows":
		for _, root := range []string{os.Getenv("PROGRAMFILES"), os.Getenv("PROGRAMFILES(X86)"), os.Getenv("LOCALAPPDATA")} {
			if root == "" {
				continue
			}
			candidates = append(candidates,
				root+"\\Chromium\\Application\\chrome.exe",
				root+"\\Google\\Chrome\\Application\\chrome.exe",
			)
		}
	}

	for _, candidate := range candidates {
		if path := resolveExecutable(candidate); path != "" {
			return path
		}
	}

	// Empty means no Chrome installation was found.
	return ""
}

// resolveExecutable checks a full path for existence or looks a command name
// up in PATH.
func resolveExecutable(nameOrPath string) string {
	if len(nameOrPath) > 0 && (nameOrPath[0] == '/' || (len(nameOrPath) > 1 && nameOrPath[1] == ':')) {
		if _, err := os.Stat(nameOrPath); err == nil {
			return nameOrPath
		}
		return ""
	}
	if path, err := exec.LookPath(nameOrPath); err == nil {
		return path
	}
	return ""
}
