package config

import (
	"fmt"
	"os"
)

// WriteTemplate writes the annotated example configuration to path.
func WriteTemplate(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(Template), 0o644)
}

const Template = `# svcgate configuration. Every key is optional.

# External trust utility. The signed token is piped to its stdin; stdout must
# be the recovered plaintext and exit status 0 means the signature is valid.
verifier_path = "/usr/bin/gpg"
verifier_args = ["--batch", "--no-tty", "--decrypt"]

# Bound on every single read or write on the session socket.
io_timeout = "30s"

max_account_bytes = 1024
max_signed_token_bytes = 65536
max_argument_bytes = 65536
max_arguments = 1024

# Leads the audit tag handed to the downstream binary:
# <prefix>:<account>:<peer>:<uid>:<pid>
log_tag_prefix = "CellAppMgr"
support_contact = "support@example.com"

syslog_tag = "svcgate"
log_level = "info"

# node_exporter textfile collector target. Empty disables the export.
metrics_textfile = ""
`
