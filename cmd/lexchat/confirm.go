package main

import (
	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
)

func surveyConfirm(question string) (bool, error) {
	confirm := false
	err := survey.AskOne(&survey.Confirm{Message: question}, &confirm)
	if err == terminal.InterruptErr {
		return false, nil
	}
	return confirm, err
}
