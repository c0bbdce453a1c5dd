package core

import (
	"fmt"
	"strings"

	"github.com/barysiuk/clipbridge/internal/core/guest"
)

// CompanionScriptName is the batch file ShareX runs after a capture.
const CompanionScriptName = "wsl-clip-bridge.cmd"

// companionScriptTemplate is filled with the sanitized instance name (%[1]s)
// and the validated guest binary path (%[2]s). Both are restricted to
// characters that have no meaning to cmd.exe, and the host path only ever
// reaches the guest as a quoted argument.
const companionScriptTemplate = `@echo off
rem Generated by clipbridge. Copies a captured image into the WSL clipboard.
setlocal EnableExtensions DisableDelayedExpansion

if "%%~1"=="" (
  echo usage: %%~nx0 IMAGE_PATH 1>&2
  exit /b 2
)

set "mime=image/png"
if /i "%%~x1"==".jpg" set "mime=image/jpeg"
if /i "%%~x1"==".jpeg" set "mime=image/jpeg"
if /i "%%~x1"==".gif" set "mime=image/gif"
if /i "%%~x1"==".webp" set "mime=image/webp"

set "guestpath="
for /f "usebackq delims=" %%%%P in (` + "`" + `wsl.exe -d %[1]s --exec wslpath -u "%%~1"` + "`" + `) do set "guestpath=%%%%P"
if not defined guestpath (
  echo cannot translate %%~1 for WSL 1>&2
  exit /b 1
)

wsl.exe -d %[1]s --exec %[2]s -selection clipboard -t %%mime%% -i "%%guestpath%%"
exit /b %%ERRORLEVEL%%
`

// RenderCompanionScript generates the Windows batch file ShareX invokes with
// the captured image path. The instance name is sanitized again here,
// independently of earlier validation, because it is the one value
// interpolated into script text. An empty result after sanitizing is an
// error, as is a binary path outside the safe path grammar.
func RenderCompanionScript(instance, binaryPath string) ([]byte, error) {
	name := guest.SanitizeName(instance)
	if name == "" {
		return nil, newError(ValidationError, "companion", fmt.Errorf("%w: %q", ErrInvalidIdentifier, instance))
	}
	if err := ValidateGuestPath(binaryPath); err != nil {
		return nil, err
	}
	script := fmt.Sprintf(companionScriptTemplate, name, binaryPath)
	// cmd.exe expects CRLF line endings.
	return []byte(strings.ReplaceAll(script, "\n", "\r\n")), nil
}
