package banner

import "fmt"

const banner = `
 ██████╗██╗  ██╗ █████╗ ████████╗██████╗
██╔════╝██║  ██║██╔══██╗╚══██╔══╝██╔══██╗
██║     ███████║███████║   ██║   ██║  ██║
██║     ██╔══██║██╔══██║   ██║   ██║  ██║
╚██████╗██║  ██║██║  ██║   ██║   ██████╔╝
 ╚═════╝╚═╝  ╚═╝╚═╝  ╚═╝   ╚═╝   ╚═════╝
`

// Print writes the startup banner with the effective runtime settings.
func Print(addr, dbPath, sources, version string) {
	fmt.Print(banner)
	fmt.Println("== Config =====================================================")
	fmt.Printf("Listen:   %s\n", addr)
	fmt.Printf("DB Path:  %s\n", dbPath)
	if version != "" {
		fmt.Printf("Version:  %s\n", version)
	}
	if sources != "" {
		fmt.Printf("Config sources: %s\n", sources)
	}
	fmt.Println("\n== Endpoints ==================================================")
	fmt.Println("POST /v1/conversations - Create a conversation (JSON: participants, title)")
	fmt.Println("POST /v1/messages - Send a message (JSON: conversation_id, body)")
	fmt.Println("GET  /v1/conversations/<id>/messages?limit=<n> - Page through a conversation")
	fmt.Println("\n== Examples ===================================================")
	fmt.Printf("curl -X POST 'http://localhost%s/v1/conversations' -d '{\"participants\": [\"alice\", \"bob\"]}'\n", addr)
	fmt.Printf("curl -X POST 'http://localhost%s/v1/messages' -d '{\"conversation_id\": \"<id>\", \"body\": \"hello\"}'\n", addr)
	fmt.Println("\n== Production? =================================================")
	fmt.Println("Set a proper storage path (--db)")
	fmt.Println("Configure backend/frontend API keys and user signing keys")
}
