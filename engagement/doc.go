// Package engagement expõe o engajamento por post (views, likes, pesquisa
// "isto foi útil?") como uma API HTTP em gin para as páginas do blog.
//
// Cada visitante é identificado por dois cookies: um de sessão (dedup de views)
// e um de dispositivo com validade longa (dedup de likes e pesquisa). O par
// (sessão, dispositivo) escolhe o Controller no registro de sessões.
//
// Middlewares:
//   - Identify: resolve os cookies e cria os que faltam
//   - LimitConcurrency: limita requisições em voo (503 quando lotado)
//   - ThrottleWrites: token bucket por visitante nas rotas de escrita (429)
//
// Falhas de escrita não viram 5xx: a resposta é 200 com outcome "failed" e o
// aviso que a página mostra ao usuário.
package engagement
