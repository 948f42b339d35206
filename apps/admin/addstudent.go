package main

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/volatiletech/null/v8"

	"github.com/theoremz/black/apps/shared"
	"github.com/theoremz/black/core"
	"github.com/theoremz/black/core/student"
)

func (cli *commandLine) studentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "students",
		Short: "Manage Black students",
		Args:  usageArgs(1),
		RunE:  unknownSubcommand,
	}

	var ns student.NewStudent
	var readiness int
	add := &cobra.Command{
		Use:   "add",
		Short: "Onboard a Black student",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := cli.addStudent(cmd, ns, readiness)
			if err != nil {
				return err
			}
			cli.printf("student %s created\n", s.ID)
			return nil
		},
	}
	flags := add.Flags()
	flags.StringVar(&ns.Name, "name", "", "full name (required)")
	flags.StringVar(&ns.UID, "uid", "", "firebase auth uid")
	flags.StringVar(&ns.Email, "email", "", "email address")
	flags.StringVar(&ns.Phone, "phone", "", "phone number")
	flags.StringVar(&ns.Track, "track", "", "tutoring track")
	flags.StringVar(&ns.RiskLevel, "risk", "", "risk level: red, yellow or green")
	flags.IntVar(&readiness, "readiness", student.MaxReadiness, "initial readiness")

	cmd.AddCommand(add)
	return cmd
}

// addStudent validates ns and creates the student.
func (cli *commandLine) addStudent(cmd *cobra.Command, ns student.NewStudent, readiness int) (student.Student, error) {
	validate, _ := shared.NewValidator()
	if err := ns.Validate(validate); err != nil {
		return student.Student{}, err
	}

	stores, err := cli.getStores(cmd.Context())
	if err != nil {
		return student.Student{}, err
	}

	now := core.NowFunc().UTC()
	s, err := stores.Students.CreateStudent(cmd.Context(), student.Student{
		UID:       null.NewString(ns.UID, ns.UID != ""),
		Name:      ns.Name,
		Email:     null.NewString(ns.Email, ns.Email != ""),
		Phone:     null.NewString(ns.Phone, ns.Phone != ""),
		Track:     null.NewString(ns.Track, ns.Track != ""),
		Readiness: student.ClampReadiness(readiness),
		RiskLevel: null.NewString(ns.RiskLevel, ns.RiskLevel != ""),
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return student.Student{}, errors.Wrap(err, "creating student")
	}
	if s.UID.Valid {
		dir, err := cli.getDirectory(cmd.Context())
		if err != nil {
			return s, err
		}
		dir.Forget(cmd.Context(), s.UID.String)
	}
	return s, nil
}
