package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show the device's identity profile",
		Long:  "Show the identity profile. Secrets are masked unless --reveal is given.",
		Args:  cobra.NoArgs,
		Run:   runProfile,
	}

	cmd.Flags().Bool("reveal", false, "Show the codeword and fallback answers")

	RootCmd.AddCommand(cmd)
}

func runProfile(cmd *cobra.Command, args []string) {
	reveal, _ := cmd.Flags().GetBool("reveal")

	cfg := settings()
	s, err := openStore(cfg)
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	p, err := s.GetProfile(cmd.Context())
	if err != nil {
		exitErr("profile", err)
	}
	if p == nil {
		if jsonOutput() {
			printJSON(nil)
			return
		}
		fmt.Println(dimStyle.Render("No profile yet. Run `nova chat` to meet Nova."))
		return
	}

	if !reveal {
		p.CodeWord = mask(p.CodeWord)
		p.Fallback.MotherName = mask(p.Fallback.MotherName)
		p.Fallback.PetName = mask(p.Fallback.PetName)
		p.Age = mask(p.Age)
		for i := range p.ChallengePhrases {
			p.ChallengePhrases[i] = mask(p.ChallengePhrases[i])
		}
	}

	if jsonOutput() {
		printJSON(p)
		return
	}
	fmt.Printf("name:      %s\n", p.DisplayName)
	fmt.Printf("codeword:  %s\n", p.CodeWord)
	fmt.Printf("age:       %s\n", p.Age)
	fmt.Printf("mother:    %s\n", p.Fallback.MotherName)
	fmt.Printf("pet:       %s\n", p.Fallback.PetName)
	if len(p.ChallengePhrases) > 0 {
		fmt.Printf("phrases:   %s\n", strings.Join(p.ChallengePhrases, ", "))
	}
	fmt.Printf("created:   %s\n", p.CreatedAt.Local().Format("2006-01-02 15:04"))
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "****"
}
