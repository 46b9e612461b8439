package main

import (
	"github.com/smartsched/console/core"
	"github.com/smartsched/console/core/user"
)

// addUser promotes an existing account to admin or creates a new one.
func (cli *commandLine) addUser(uname, email, pwd string) error {
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)

	usr, err := cli.usrRepo.GetUserByUsernameOrEmail(uname)
	if err == user.ErrNotFound {
		usr, err = cli.usrRepo.GetUserByUsernameOrEmail(email)
	}
	if err != nil {
		if err != user.ErrNotFound {
			return err
		}
		usr = user.User{
			Name:     uname,
			Username: uname,
			Email:    email,
		}
	}
	usr.Role = user.RoleAdmin
	usr.Status = user.StatusActive
	if err := usr.SetPassword(pwd); err != nil {
		return err
	}
	if usr.ID == 0 {
		_, err = cli.usrRepo.CreateUser(usr)
	} else {
		_, err = cli.usrRepo.UpdateUser(usr)
	}
	return err
}
