package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/nova/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "memory",
		Short: "Inspect and edit what Nova remembers",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List remembered facts (★ marks essential facts)",
		Args:  cobra.NoArgs,
		Run:   runMemoryList,
	}
	list.Flags().Bool("essential", false, "Only essential facts")

	add := &cobra.Command{
		Use:   "add <fact>",
		Short: "Remember a fact",
		Args:  cobra.MinimumNArgs(1),
		Run:   runMemoryAdd,
	}

	rm := &cobra.Command{
		Use:   "rm <number|text>",
		Short: "Forget a fact by its list number or exact text",
		Args:  cobra.MinimumNArgs(1),
		Run:   runMemoryRm,
	}

	cmd.AddCommand(list, add, rm)
	RootCmd.AddCommand(cmd)
}

func runMemoryList(cmd *cobra.Command, args []string) {
	onlyEssential, _ := cmd.Flags().GetBool("essential")

	cfg := settings()
	s, err := openStore(cfg)
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	facts, err := s.GetMemory(cmd.Context())
	if err != nil {
		exitErr("memory", err)
	}
	if onlyEssential {
		kept := facts[:0]
		for _, f := range facts {
			if f.Essential {
				kept = append(kept, f)
			}
		}
		facts = kept
	}

	if jsonOutput() {
		if facts == nil {
			facts = []model.Fact{}
		}
		printJSON(facts)
		return
	}
	if len(facts) == 0 {
		fmt.Println(dimStyle.Render("Nothing remembered yet."))
		return
	}
	for i, f := range facts {
		fmt.Println(formatFact(i, f))
	}
}

func runMemoryAdd(cmd *cobra.Command, args []string) {
	text := strings.Join(args, " ")

	cfg := settings()
	s, err := openStore(cfg)
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	acc := newAccumulator(cfg)
	facts, err := s.GetMemory(cmd.Context())
	if err != nil {
		exitErr("memory", err)
	}
	fact := model.Fact{Text: text, Essential: acc.IsEssential(text)}
	merged := acc.Merge(facts, []model.Fact{fact})
	if err := s.PutMemory(cmd.Context(), merged); err != nil {
		exitErr("memory add", err)
	}

	if jsonOutput() {
		printJSON(fact)
		return
	}
	fmt.Println(formatFact(len(merged)-1, fact))
}

func runMemoryRm(cmd *cobra.Command, args []string) {
	target := strings.Join(args, " ")

	cfg := settings()
	s, err := openStore(cfg)
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	facts, err := s.GetMemory(cmd.Context())
	if err != nil {
		exitErr("memory", err)
	}

	idx := -1
	if n, err := strconv.Atoi(target); err == nil && n >= 1 && n <= len(facts) {
		idx = n - 1
	} else {
		for i, f := range facts {
			if strings.EqualFold(f.Text, target) {
				idx = i
				break
			}
		}
	}
	if idx < 0 {
		exitErr("memory rm", fmt.Errorf("no fact matches %q", target))
	}

	removed := facts[idx]
	facts = append(facts[:idx], facts[idx+1:]...)
	if err := s.PutMemory(cmd.Context(), facts); err != nil {
		exitErr("memory rm", err)
	}

	if jsonOutput() {
		printJSON(map[string]any{"removed": removed.Text})
		return
	}
	fmt.Printf("Forgot: %s\n", removed.Text)
}
