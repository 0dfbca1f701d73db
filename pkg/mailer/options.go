package mailer

type Option func(*Mailer)

func Auth(username, password string) Option {
	return func(m *Mailer) {
		m.username = username
		m.password = password
	}
}
