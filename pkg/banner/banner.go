package banner

import "fmt"

const banner = `
 ██████╗██╗  ██╗ █████╗ ████████╗████████╗███████╗██████╗ ██████╗
██╔════╝██║  ██║██╔══██╗╚══██╔══╝╚══██╔══╝██╔════╝██╔══██╗██╔══██╗
██║     ███████║███████║   ██║      ██║   █████╗  ██████╔╝██║  ██║
██║     ██╔══██║██╔══██║   ██║      ██║   ██╔══╝  ██╔══██╗██║  ██║
╚██████╗██║  ██║██║  ██║   ██║      ██║   ███████╗██║  ██║██████╔╝
 ╚═════╝╚═╝  ╚═╝╚═╝  ╚═╝   ╚═╝      ╚═╝   ╚══════╝╚═╝  ╚═╝╚═════╝
`

// Print writes the startup banner with runtime info.
func Print(addr, dbPath, version string) {
	fmt.Print(banner)
	fmt.Println("== Config =====================================================")
	fmt.Printf("Listen:   %s\n", addr)
	fmt.Printf("DB Path:  %s\n", dbPath)
	if version != "" {
		fmt.Printf("Version:  %s\n", version)
	}
	fmt.Println("\n== Endpoints ==================================================")
	fmt.Println("GET  /ws                     - websocket (login, sendMessage, chat:peek, ...)")
	fmt.Println("POST /v1/signup              - register an account")
	fmt.Println("POST /v1/login               - check credentials")
	fmt.Println("POST /v1/contacts            - add a contact")
	fmt.Println("GET  /v1/contacts?user=<ph>  - list contacts")
	fmt.Println("GET  /metrics                - prometheus scrape")
}
