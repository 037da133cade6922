package fleet

import (
	"bytes"
	"fmt"
	"text/template"
)

// BootstrapParams holds the substitution values for the first-boot script.
// The rendered payload is opaque to the controller; it is handed to the
// provider verbatim as instance user data.
type BootstrapParams struct {
	OwnerID  string
	RecordID string
	PlanType string
}

// RenderBootstrap renders the first-boot provisioning script for a server.
func RenderBootstrap(p BootstrapParams) (string, error) {
	if p.OwnerID == "" || p.RecordID == "" {
		return "", fmt.Errorf("owner and record ids are required")
	}

	tmpl, err := template.New("bootstrap").Parse(bootstrapTemplate)
	if err != nil {
		return "", fmt.Errorf("parse bootstrap template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, p); err != nil {
		return "", fmt.Errorf("render bootstrap template: %w", err)
	}

	return buf.String(), nil
}

// bootstrapTemplate is the first-boot bash script. It hardens the host
// (firewall, fail2ban, unattended upgrades), installs Docker, serves a
// placeholder landing page, and drops a machine-readable identity file the
// support tooling reads.
const bootstrapTemplate = `#!/bin/bash
set -euo pipefail

exec > >(tee /var/log/openfleet-install.log)
exec 2>&1

echo "openfleet bootstrap starting"
echo "owner: {{ .OwnerID }}"
echo "server: {{ .RecordID }}"

export DEBIAN_FRONTEND=noninteractive
apt-get update
apt-get upgrade -y
apt-get install -y curl wget git ufw fail2ban unattended-upgrades

curl -fsSL https://get.docker.com -o /tmp/get-docker.sh
sh /tmp/get-docker.sh

ufw --force enable
ufw allow 22/tcp
ufw allow 80/tcp
ufw allow 443/tcp

systemctl enable fail2ban
systemctl start fail2ban
dpkg-reconfigure -plow unattended-upgrades

apt-get install -y nginx
systemctl enable nginx
systemctl start nginx
cat > /var/www/html/index.html <<'HTML'
<!DOCTYPE html>
<html>
<head><title>Server Ready</title></head>
<body><h1>Your server is provisioned and running.</h1></body>
</html>
HTML

cat > /etc/openfleet-info.json <<EOF
{
  "owner_id": "{{ .OwnerID }}",
  "server_id": "{{ .RecordID }}",
  "plan": "{{ .PlanType }}",
  "installed_at": "$(date -Iseconds)"
}
EOF

echo "openfleet bootstrap complete"
`
