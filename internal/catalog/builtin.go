package catalog

// Builtin returns the default Ubuntu server setup catalog. Downstream
// installations can replace it with a YAML catalog via configuration.
func Builtin() *Catalog {
	return &Catalog{
		Categories: []CategorySpec{
			{ID: "system", Name: "System"},
			{ID: "security", Name: "Security"},
			{ID: "network", Name: "Network"},
			{ID: "services", Name: "Services"},
		},
		Tasks: []TaskSpec{
			{
				ID:          "system-update",
				Category:    "system",
				Name:        "System update",
				Description: "Refresh package lists and upgrade installed packages.",
				Command:     "apt-get update && DEBIAN_FRONTEND=noninteractive apt-get -y upgrade",
			},
			{
				ID:           "shell-setup",
				Category:     "system",
				Name:         "Shell setup",
				Description:  "Create the admin user and install the chosen login shell.",
				Prerequisite: "system-update",
				Command:      `/usr/local/lib/setuptask/shell-setup.sh "$SETUP_USERNAME" "$SETUP_SHELL"`,
				Steps: []StepSpec{
					{Field: "username", Prompt: "Admin username", Validator: "username", Required: true},
					{Field: "shell", Prompt: "Login shell", Options: []string{"bash", "zsh", "fish"}, Default: "1"},
				},
			},
			{
				ID:           "ufw-firewall",
				Category:     "security",
				Name:         "UFW firewall",
				Description:  "Install ufw, open the SSH port, and enable the firewall.",
				Prerequisite: "system-update",
				Command:      `apt-get -y install ufw && ufw allow "$SETUP_SSH_PORT"/tcp && ufw --force enable`,
				Steps: []StepSpec{
					{Field: "ssh_port", Prompt: "SSH port to keep open", Validator: "port", Default: "22", Required: true},
				},
			},
			{
				ID:           "fail2ban",
				Category:     "security",
				Name:         "Fail2ban",
				Description:  "Install fail2ban with an sshd jail.",
				Prerequisite: "ufw-firewall",
				Command:      `/usr/local/lib/setuptask/fail2ban.sh "$SETUP_BAN_TIME"`,
				Steps: []StepSpec{
					{Field: "ban_time", Prompt: "Ban time in seconds", Validator: "integer", Default: "600"},
				},
			},
			{
				ID:           "clamav-antivirus",
				Category:     "security",
				Name:         "ClamAV antivirus",
				Description:  "Install clamav and enable the freshclam updater.",
				Prerequisite: "system-update",
				Command:      "apt-get -y install clamav clamav-daemon && systemctl enable --now clamav-freshclam",
			},
			{
				ID:           "wireguard-vpn",
				Category:     "network",
				Name:         "WireGuard VPN",
				Description:  "Install WireGuard and generate the server interface.",
				Prerequisite: "ufw-firewall",
				Command:      `/usr/local/lib/setuptask/wireguard.sh "$SETUP_LISTEN_PORT" "$SETUP_SERVER_IP" "$SETUP_DNS"`,
				Steps: []StepSpec{
					{Field: "listen_port", Prompt: "WireGuard listen port", Validator: "port", Default: "51820", Required: true},
					{Field: "server_ip", Prompt: "VPN server address", Validator: "ipv4", Default: "10.8.0.1", Required: true},
					{Field: "dns", Prompt: "DNS server for peers", Validator: "ipv4", Default: "1.1.1.1"},
				},
			},
			{
				ID:           "nginx-proxy",
				Category:     "network",
				Name:         "Nginx reverse proxy",
				Description:  "Install nginx with a TLS-terminating reverse proxy site.",
				Prerequisite: "system-update",
				Command:      `/usr/local/lib/setuptask/nginx-proxy.sh "$SETUP_DOMAIN" "$SETUP_EMAIL" "$SETUP_UPSTREAM_PORT"`,
				Steps: []StepSpec{
					{Field: "domain", Prompt: "Public domain name", Validator: "domain", Required: true},
					{Field: "email", Prompt: "Contact email for certificates", Validator: "email", Required: true},
					{Field: "upstream_port", Prompt: "Upstream application port", Validator: "port", Default: "3000"},
				},
			},
			{
				ID:           "docker-runtime",
				Category:     "services",
				Name:         "Docker runtime",
				Description:  "Install the Docker engine with a custom data root.",
				Prerequisite: "system-update",
				Command:      `/usr/local/lib/setuptask/docker.sh "$SETUP_DATA_ROOT"`,
				Steps: []StepSpec{
					{Field: "data_root", Prompt: "Docker data directory", Validator: "path", Default: "/var/lib/docker"},
				},
			},
		},
	}
}
