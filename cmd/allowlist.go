package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sinycat/merkledrop/allowlist"
	"github.com/sinycat/merkledrop/config"
	"github.com/sinycat/merkledrop/tree"
	"github.com/urfave/cli/v2"
)

type allowlistMember struct {
	Address common.Address `json:"address"`
	Proof   tree.Proof     `json:"proof"`
}

// allowlistArtifact is what claimers need: the root the admin publishes and
// one proof per member.
type allowlistArtifact struct {
	Root    common.Hash       `json:"root"`
	Members []allowlistMember `json:"members"`
}

func allowlistRootCmd(cliCtx *cli.Context) error {
	members, err := allowlist.FromFile(cliCtx.String(config.FlagAllowlistFile))
	if err != nil {
		return err
	}
	set := allowlist.New(members)

	artifact := allowlistArtifact{
		Root:    set.Root(),
		Members: make([]allowlistMember, set.Len()),
	}
	for i, member := range set.Members() {
		proof, err := set.ProofForIndex(i)
		if err != nil {
			return err
		}
		artifact.Members[i] = allowlistMember{Address: member, Proof: proof}
	}

	out, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return err
	}
	if outputFile := cliCtx.String(config.FlagOutputFile); outputFile != "" {
		return os.WriteFile(outputFile, out, config.DefaultCreationFilePermissions)
	}
	_, err = fmt.Fprintln(os.Stdout, string(out))

	return err
}
