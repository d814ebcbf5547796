package user

import "testing"

func TestCheckPassword(t *testing.T) {
	tests := []struct {
		name  string
		pwd   string
		uname string
		email string
		want  string
	}{
		{name: "too short", pwd: "Ab#1", want: pwdMinLenTag},
		{name: "whitespace", pwd: "Rahasia 99", want: pwdNoSpaceTag},
		{name: "all numeric", pwd: "1234567890", want: pwdNotAllNumTag},
		{name: "like the name", pwd: "ani-lestari", uname: "Ani Lestari", want: pwdAttrSimTag},
		{name: "like the email", pwd: "sari.guru1", email: "sari.guru@sekolah.test", want: pwdAttrSimTag},
		{name: "common", pwd: "password123", want: pwdNoCommonTag},
		{name: "common ignores case", pwd: "PASSWORD123", want: pwdNoCommonTag},
		{name: "ok", pwd: "Rahasia#99", uname: "Ani Lestari", email: "ani@sekolah.test"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := checkPassword(tt.pwd, tt.uname, tt.email); got != tt.want {
				t.Errorf("checkPassword(%q) = %q, want %q", tt.pwd, got, tt.want)
			}
		})
	}
}

func TestRoleName(t *testing.T) {
	for role, want := range map[string]string{RoleAdmin: "Admin", RoleTeacher: "Guru", RoleStudent: "Siswa", "kepsek": "kepsek"} {
		if got := RoleName(role); got != want {
			t.Errorf("RoleName(%q) = %q, want %q", role, got, want)
		}
	}
}
