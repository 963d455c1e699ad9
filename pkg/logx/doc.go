// Package logx is a thin structured-logging facade over zerolog.
//
// It exists so the rest of the codebase never imports zerolog directly:
// components take a logx.Logger, tests pass logx.Nop(), and the app can
// re-apply sink/level configuration at runtime via the Service.
package logx
