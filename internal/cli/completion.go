package cli

import (
	"fmt"
	"io"
)

// BashCompletion generates bash completion script
const BashCompletion = `#!/bin/bash
# Bash completion for loyaltyctl

_loyaltyctl_completion() {
    local cur prev
    COMPREPLY=()
    cur="${COMP_WORDS[COMP_CWORD]}"
    prev="${COMP_WORDS[COMP_CWORD-1]}"

    local commands="scan user stores health completion"
    local global_flags="--server --field --timeout --help"

    case "${prev}" in
        scan)
            COMPREPLY=( $(compgen -W "--user --store --name --picture ${global_flags}" -- ${cur}) )
            return 0
            ;;
        user)
            COMPREPLY=( $(compgen -W "--user ${global_flags}" -- ${cur}) )
            return 0
            ;;
        completion)
            COMPREPLY=( $(compgen -W "bash zsh" -- ${cur}) )
            return 0
            ;;
    esac

    COMPREPLY=( $(compgen -W "${commands} ${global_flags}" -- ${cur}) )
}

complete -F _loyaltyctl_completion loyaltyctl
`

// ZshCompletion generates zsh completion script
const ZshCompletion = `#compdef loyaltyctl
# Zsh completion for loyaltyctl

_loyaltyctl() {
    local -a commands
    commands=(
        'scan:Record a store visit'
        'user:Show an account with its full history'
        'stores:List the store catalog'
        'health:Check server health'
        'completion:Print a shell completion script'
    )

    _arguments \
        '--server[API base URL]:url:' \
        '--field[gjson path to extract from the response]:path:' \
        '--timeout[Request timeout]:duration:' \
        '1:command:->command' \
        '*::arg:->args'

    case $state in
        command)
            _describe 'command' commands
            ;;
    esac
}

_loyaltyctl
`

// WriteCompletion writes the completion script for shell.
func WriteCompletion(w io.Writer, shell string) error {
	var script string
	switch shell {
	case "bash":
		script = BashCompletion
	case "zsh":
		script = ZshCompletion
	default:
		return fmt.Errorf("unsupported shell: %s (supported: bash, zsh)", shell)
	}
	_, err := io.WriteString(w, script)
	return err
}
