package auth

import (
	"fmt"
	"strings"
)

// ShowCredentialSetupGuide displays step-by-step instructions for configuring
// the scraper account pool.
func ShowCredentialSetupGuide() {
	fmt.Println(strings.Repeat("=", 72))
	fmt.Println("SCRAPER ACCOUNT SETUP GUIDE")
	fmt.Println(strings.Repeat("=", 72))
	fmt.Println()

	fmt.Println("The scraper rotates through a pool of LinkedIn accounts. Accounts are")
	fmt.Println("configured as numbered environment variable pairs:")
	fmt.Println()
	fmt.Println("    LINKEDIN_EMAIL_1=first@example.com")
	fmt.Println("    LINKEDIN_PASSWORD_1=...")
	fmt.Println("    LINKEDIN_EMAIL_2=second@example.com")
	fmt.Println("    LINKEDIN_PASSWORD_2=...")
	fmt.Println()
	fmt.Println("Numbering starts at 1 and must be contiguous: discovery stops at the")
	fmt.Println("first missing index, so a gap silently truncates the pool.")
	fmt.Println()
	fmt.Println("Pairs can live in a .env file next to the binary or in the process")
	fmt.Println("environment. Alternatively, store credentials in the system keychain:")
	fmt.Println()
	fmt.Println("    liscraper accounts add")
	fmt.Println()
	fmt.Println("Keychain-stored accounts are rotated in email order. Environment pairs")
	fmt.Println("always take precedence when both are configured.")
	fmt.Println()
	fmt.Println("Recommendations:")
	fmt.Println("  - Use dedicated accounts, never personal ones")
	fmt.Println("  - Keep the daily per-account limit conservative (default 80)")
	fmt.Println("  - A flagged account stays out of rotation until the next UTC day")
	fmt.Println(strings.Repeat("=", 72))
}
