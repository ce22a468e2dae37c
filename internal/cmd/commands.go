package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ahriroot/watchmen/internal/dispatch"
)

func newSelectorCommand(use, short string, op dispatch.Opcode) *cobra.Command {
	sel := &selectorFlags{}
	c := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			flag, err := sel.toFlag()
			if err != nil {
				return err
			}
			resp, err := send(dispatch.Request{Command: op, Flag: &flag})
			if err != nil {
				return err
			}
			return printResponse(resp)
		},
	}
	sel.register(c.Flags())
	return c
}

var startCmd = newSelectorCommand("start", "Start a matching task", dispatch.OpStart)
var restartCmd = newSelectorCommand("restart", "Restart a matching task", dispatch.OpRestart)
var stopCmd = newSelectorCommand("stop", "Stop a matching task", dispatch.OpStop)
var removeCmd = newSelectorCommand("remove", "Remove a matching task", dispatch.OpRemove)
var deleteCmd = newSelectorCommand("delete", "Force-stop then remove a matching task", dispatch.OpDelete)
var pauseCmd = newSelectorCommand("pause", "Pause a matching periodic task", dispatch.OpPause)
var resumeCmd = newSelectorCommand("resume", "Resume a matching paused task", dispatch.OpResume)

var writeData string

var writeCmd = &cobra.Command{
	Use:   "write",
	Short: "Write data to a running task's stdin",
	RunE: func(cmd *cobra.Command, args []string) error {
		sel := writeSelector
		flag, err := sel.toFlag()
		if err != nil {
			return err
		}
		resp, err := send(dispatch.Request{Command: dispatch.OpWrite, Flag: &flag, Data: writeData})
		if err != nil {
			return err
		}
		return printResponse(resp)
	},
}

var writeSelector = &selectorFlags{}

func init() {
	writeSelector.register(writeCmd.Flags())
	writeCmd.Flags().StringVarP(&writeData, "data", "d", "", "data to write to stdin")

	rootCmd.AddCommand(startCmd, restartCmd, stopCmd, removeCmd, deleteCmd, pauseCmd, resumeCmd, writeCmd)
}

func printResponse(resp *dispatch.Response) error {
	if resp.Code != dispatch.CodeOK {
		return fmt.Errorf("%s", resp.Msg)
	}
	fmt.Println(resp.Msg)
	return nil
}
